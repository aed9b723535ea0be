package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ancestry/api/internal/authpw"
	"ancestry/api/internal/search"
	"ancestry/api/internal/store"
)

// memUserStore backs the password auth service for handler tests.
type memUserStore struct {
	nextID int64
	users  map[int64]store.User
	byMail map[string]int64
	resets map[string]int64
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		users:  make(map[int64]store.User),
		byMail: make(map[string]int64),
		resets: make(map[string]int64),
	}
}

func (m *memUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	id, ok := m.byMail[email]
	if !ok {
		return store.User{}, errors.New("user not found")
	}
	return m.users[id], nil
}

func (m *memUserStore) GetUserByID(_ context.Context, userID int64) (store.User, error) {
	user, ok := m.users[userID]
	if !ok {
		return store.User{}, errors.New("user not found")
	}
	return user, nil
}

func (m *memUserStore) CreateUser(_ context.Context, user store.User) (store.User, error) {
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = user
	m.byMail[user.Email] = user.ID
	return user, nil
}

func (m *memUserStore) UpdateUserVerificationToken(_ context.Context, userID int64, token string, expiresAt time.Time) error {
	user := m.users[userID]
	user.VerificationToken = token
	user.VerificationExpiresAt = &expiresAt
	m.users[userID] = user
	return nil
}

func (m *memUserStore) VerifyUserEmail(_ context.Context, token string) error {
	for id, user := range m.users {
		if user.VerificationToken == token && token != "" {
			user.IsEmailVerified = true
			user.IsActive = true
			user.VerificationToken = ""
			m.users[id] = user
			return nil
		}
	}
	return errors.New("invalid token")
}

func (m *memUserStore) UpdateUserPassword(_ context.Context, userID int64, passwordHash string) error {
	user := m.users[userID]
	user.PasswordHash = passwordHash
	m.users[userID] = user
	return nil
}

func (m *memUserStore) CreatePasswordReset(_ context.Context, userID int64, token string, _ time.Time) error {
	m.resets[token] = userID
	return nil
}

func (m *memUserStore) GetPasswordReset(_ context.Context, token string) (int64, error) {
	userID, ok := m.resets[token]
	if !ok {
		return 0, errors.New("reset not found")
	}
	return userID, nil
}

func (m *memUserStore) MarkPasswordResetUsed(_ context.Context, token string) error {
	delete(m.resets, token)
	return nil
}

func newTestServer(fake *fakeStore) *HTTPServer {
	svc, _, _ := newTestService(fake)
	svc.authPW = authpw.NewService(newMemUserStore())
	return NewHTTPServer(svc, "*")
}

func postJSON(t *testing.T, server *HTTPServer, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func parseBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	payload := parseBody(t, rr)
	if payload["ok"] != true {
		t.Errorf("expected ok=true, got %v", payload["ok"])
	}
}

func TestReadyEndpointReportsDatabaseFailure(t *testing.T) {
	fake := &fakeStore{
		pingFn: func(context.Context) error { return errors.New("connection refused") },
	}
	server := newTestServer(fake)

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	payload := parseBody(t, rr)
	if payload["status"] != "not_ready" {
		t.Errorf("expected not_ready, got %v", payload["status"])
	}
}

func TestProtectedRouteWithoutBearerReturnsUnauthorized(t *testing.T) {
	server := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/trees", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseBody(t, rr)
	if payload["code"] != "UNAUTHORIZED" {
		t.Errorf("expected code UNAUTHORIZED, got %v", payload["code"])
	}
}

func TestProtectedRouteWithGarbageBearerReturnsUnauthorized(t *testing.T) {
	server := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/trees", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestTokenForDeletedAccountReturnsUnauthorized(t *testing.T) {
	fake := &fakeStore{}
	svc, _, _ := newTestService(fake)
	server := NewHTTPServer(svc, "*")

	bearer := bearerFor(t, svc, 1)

	// The account vanishes after the token was issued.
	fake.getUserByIDFn = func(context.Context, int64) (store.User, error) {
		return store.User{}, sql.ErrNoRows
	}

	req := httptest.NewRequest(http.MethodGet, "/api/trees", nil)
	req.Header.Set("Authorization", bearer)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	if parseBody(t, rr)["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %s", rr.Body.String())
	}
}

func TestSearchRejectsNonPositiveLimit(t *testing.T) {
	fake := &fakeStore{}
	svc, _, _ := newTestService(fake)
	captured := &capturingSearch{}
	svc.search = captured
	server := NewHTTPServer(svc, "*")
	bearer := bearerFor(t, svc, 1)

	for _, limit := range []string{"-5", "0"} {
		req := httptest.NewRequest(http.MethodGet, "/api/search/persons?q=smith&limit="+limit, nil)
		req.Header.Set("Authorization", bearer)
		rr := httptest.NewRecorder()
		server.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("limit=%s: expected 422, got %d body=%s", limit, rr.Code, rr.Body.String())
		}
		if parseBody(t, rr)["code"] != "VALIDATION_ERROR" {
			t.Fatalf("limit=%s: expected VALIDATION_ERROR, got %s", limit, rr.Body.String())
		}
	}
	if len(captured.queries) != 0 {
		t.Fatalf("rejected limits must never reach the search backend, got %d queries", len(captured.queries))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/search/persons?q=smith&limit=5", nil)
	req.Header.Set("Authorization", bearer)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if len(captured.queries) != 1 || captured.queries[0].Limit != 5 {
		t.Fatalf("expected one query with limit 5, got %+v", captured.queries)
	}
}

// capturingSearch records queries instead of searching.
type capturingSearch struct {
	queries []search.Query
}

func (c *capturingSearch) IndexPerson(search.PersonRecord) {}

func (c *capturingSearch) RemovePerson(int64, int64) {}

func (c *capturingSearch) Search(_ context.Context, q search.Query) (search.Response, error) {
	c.queries = append(c.queries, q)
	return search.Response{Results: []search.Result{}, Query: q.Text}, nil
}

func TestSignUpVerifySignInFlow(t *testing.T) {
	server := newTestServer(&fakeStore{})

	rr := postJSON(t, server, "/api/auth/signup",
		`{"username":"avery","email":"avery@example.com","password":"long-enough"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseBody(t, rr)
	token, _ := payload["devVerificationToken"].(string)
	if token == "" {
		t.Fatal("expected devVerificationToken when SMTP is unconfigured")
	}

	// Unverified accounts cannot sign in yet.
	rr = postJSON(t, server, "/api/auth/signin",
		`{"email":"avery@example.com","password":"long-enough"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("signin before verify: expected 403, got %d", rr.Code)
	}
	if parseBody(t, rr)["code"] != "EMAIL_NOT_VERIFIED" {
		t.Fatalf("expected EMAIL_NOT_VERIFIED, got %s", rr.Body.String())
	}

	rr = postJSON(t, server, "/api/auth/verify-email", fmt.Sprintf(`{"token":%q}`, token))
	if rr.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = postJSON(t, server, "/api/auth/signin",
		`{"email":"avery@example.com","password":"long-enough"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("signin: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload = parseBody(t, rr)
	if access, _ := payload["accessToken"].(string); access == "" {
		t.Error("expected accessToken")
	}
	if refresh, _ := payload["refreshToken"].(string); refresh == "" {
		t.Error("expected refreshToken")
	}
	if payload["username"] != "avery" {
		t.Errorf("expected username avery, got %v", payload["username"])
	}
}

func TestSignInWrongPassword(t *testing.T) {
	server := newTestServer(&fakeStore{})

	rr := postJSON(t, server, "/api/auth/signup",
		`{"username":"avery","email":"avery@example.com","password":"long-enough"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: %d", rr.Code)
	}

	rr = postJSON(t, server, "/api/auth/signin",
		`{"email":"avery@example.com","password":"wrong-password"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if parseBody(t, rr)["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS, got %s", rr.Body.String())
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	server := newTestServer(&fakeStore{})

	rr := postJSON(t, server, "/api/auth/signup",
		`{"username":"first","email":"same@example.com","password":"long-enough"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("first signup: %d", rr.Code)
	}

	rr = postJSON(t, server, "/api/auth/signup",
		`{"username":"second","email":"same@example.com","password":"long-enough"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if parseBody(t, rr)["code"] != "EMAIL_EXISTS" {
		t.Fatalf("expected EMAIL_EXISTS, got %s", rr.Body.String())
	}
}

func TestSignUpRejectsMalformedBody(t *testing.T) {
	server := newTestServer(&fakeStore{})

	rr := postJSON(t, server, "/api/auth/signup", `{"username":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if parseBody(t, rr)["code"] != "INVALID_BODY" {
		t.Fatalf("expected INVALID_BODY, got %s", rr.Body.String())
	}
}

func bearerFor(t *testing.T, svc *Service, userID int64) string {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), userID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return "Bearer " + session.Token
}

func TestListTreesWithSession(t *testing.T) {
	fake := &fakeStore{
		listOwnedTreesFn: func(context.Context, int64) ([]store.FamilyTree, error) {
			return []store.FamilyTree{{ID: 1, Name: "Maternal Line"}}, nil
		},
	}
	svc, _, _ := newTestService(fake)
	server := NewHTTPServer(svc, "*")

	req := httptest.NewRequest(http.MethodGet, "/api/trees", nil)
	req.Header.Set("Authorization", bearerFor(t, svc, 1))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseBody(t, rr)
	trees, _ := payload["trees"].([]any)
	if len(trees) != 1 {
		t.Fatalf("expected one tree, got %v", payload["trees"])
	}
}

func TestGetMissingTreeMapsToNotFound(t *testing.T) {
	fake := &fakeStore{}
	svc, _, _ := newTestService(fake)
	server := NewHTTPServer(svc, "*")

	req := httptest.NewRequest(http.MethodGet, "/api/trees/404", nil)
	req.Header.Set("Authorization", bearerFor(t, svc, 1))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
	if parseBody(t, rr)["code"] != "TREE_NOT_FOUND" {
		t.Fatalf("expected TREE_NOT_FOUND, got %s", rr.Body.String())
	}
}

func TestForbiddenEditMapsToStatus(t *testing.T) {
	fake := &fakeStore{getTreeFn: publicTree(1)}
	svc, _, _ := newTestService(fake)
	server := NewHTTPServer(svc, "*")

	req := httptest.NewRequest(http.MethodPost, "/api/trees/10/members",
		bytes.NewBufferString(`{"firstName":"Intruder"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerFor(t, svc, 99))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	if parseBody(t, rr)["code"] != "NO_EDIT_ACCESS" {
		t.Fatalf("expected NO_EDIT_ACCESS, got %s", rr.Body.String())
	}
}

func TestGedcomExportDownload(t *testing.T) {
	fake := &fakeStore{getTreeFn: publicTree(1)}
	svc, _, _ := newTestService(fake)
	server := NewHTTPServer(svc, "*")

	req := httptest.NewRequest(http.MethodGet, "/api/trees/10/export/gedcom", nil)
	req.Header.Set("Authorization", bearerFor(t, svc, 1))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if disposition := rr.Header().Get("Content-Disposition"); !strings.Contains(disposition, ".ged") {
		t.Errorf("expected a .ged attachment, got %q", disposition)
	}
	if body := rr.Body.String(); !strings.Contains(body, "0 HEAD") || !strings.Contains(body, "0 TRLR") {
		t.Errorf("expected GEDCOM header and trailer, got %q", body)
	}
}

func TestSessionRefreshRotatesTokens(t *testing.T) {
	fake := &fakeStore{}
	svc, _, _ := newTestService(fake)

	// The Postgres-backed fallback path stores hashes in the data store.
	saved := make(map[string]int64)
	fake.getUserByIDFn = func(_ context.Context, userID int64) (store.User, error) {
		return store.User{ID: userID, Username: "avery", IsActive: true}, nil
	}
	svc.sessions = &stubSessions{saved: saved}
	server := NewHTTPServer(svc, "*")

	session, err := svc.CreateSession(context.Background(), 1)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	rr := postJSON(t, server, "/api/session/refresh",
		fmt.Sprintf(`{"refreshToken":%q}`, session.RefreshToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseBody(t, rr)
	next, _ := payload["refreshToken"].(string)
	if next == "" || next == session.RefreshToken {
		t.Error("refresh must rotate the refresh token")
	}

	// The old token was revoked by the rotation.
	rr = postJSON(t, server, "/api/session/refresh",
		fmt.Sprintf(`{"refreshToken":%q}`, session.RefreshToken))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh token: expected 401, got %d", rr.Code)
	}
}

// stubSessions is an in-memory sessionStore.
type stubSessions struct {
	saved map[string]int64
}

func (s *stubSessions) SaveRefreshSession(_ context.Context, tokenHash string, userID int64, _ time.Time) error {
	s.saved[tokenHash] = userID
	return nil
}

func (s *stubSessions) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	userID, ok := s.saved[tokenHash]
	if !ok {
		return store.User{}, errors.New("refresh session not found")
	}
	return store.User{ID: userID}, nil
}

func (s *stubSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	delete(s.saved, tokenHash)
	return nil
}
