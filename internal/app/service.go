package app

import (
	"context"
	"log/slog"
	"time"

	"ancestry/api/internal/access"
	"ancestry/api/internal/auth"
	"ancestry/api/internal/authpw"
	"ancestry/api/internal/config"
	"ancestry/api/internal/email"
	"ancestry/api/internal/media"
	"ancestry/api/internal/sanitize"
	"ancestry/api/internal/search"
	"ancestry/api/internal/store"
	"ancestry/api/internal/util"
)

// Session is an authenticated caller.
type Session struct {
	Token        string
	RefreshToken string
	UserID       int64
	Username     string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	// users
	GetUserByID(context.Context, int64) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)

	// refresh sessions (Postgres fallback path)
	SaveRefreshSession(context.Context, string, int64, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	// trees
	InsertTree(context.Context, store.FamilyTree) (store.FamilyTree, error)
	GetTree(context.Context, int64) (store.FamilyTree, error)
	UpdateTree(context.Context, int64, string, string, bool) error
	DeleteTree(context.Context, int64) error
	ListOwnedTrees(context.Context, int64) ([]store.FamilyTree, error)
	ListSharedTrees(context.Context, int64) ([]store.FamilyTree, error)

	// collaborators
	GetCollaborator(context.Context, int64, int64) (*store.Collaborator, error)
	GetCollaboratorByID(context.Context, int64) (store.Collaborator, error)
	InsertCollaborator(context.Context, store.Collaborator) (store.Collaborator, error)
	ListCollaborators(context.Context, int64) ([]store.Collaborator, error)
	DeleteCollaborator(context.Context, int64) error

	// people and memberships
	InsertPerson(context.Context, store.Person) (store.Person, error)
	GetPerson(context.Context, int64) (store.Person, error)
	UpdatePerson(context.Context, store.Person) error
	InsertTreeMember(context.Context, int64, int64) error
	IsTreeMember(context.Context, int64, int64) (bool, error)
	DeleteTreeMember(context.Context, int64, int64) error
	ListTreeMembers(context.Context, int64) ([]store.Person, error)

	// relationships
	InsertRelationship(context.Context, store.Relationship) (store.Relationship, error)
	GetRelationship(context.Context, int64) (store.Relationship, error)
	RelationshipExists(context.Context, int64, int64) (bool, error)
	PersonHasRelationships(context.Context, int64) (bool, error)
	DeleteRelationship(context.Context, int64) error
	ListTreeRelationships(context.Context, int64) ([]store.Relationship, error)

	// media
	InsertMedia(context.Context, store.Media) (store.Media, error)
	GetMedia(context.Context, int64) (store.Media, error)
	ListPersonMedia(context.Context, int64) ([]store.Media, error)
	DeleteMedia(context.Context, int64) error

	Ping(ctx context.Context) error
}

// sessionStore holds refresh tokens; Redis in production, the Postgres
// store when Redis is unconfigured.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type personSearch interface {
	IndexPerson(record search.PersonRecord)
	RemovePerson(personID, treeID int64)
	Search(ctx context.Context, query search.Query) (search.Response, error)
}

type mailer interface {
	IsConfigured() bool
	SendVerificationEmail(to, userName, verificationURL string) error
	SendPasswordResetEmail(to, userName, resetURL string) error
	SendTreeInvitation(to, treeName, inviterName, permission string) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	sanitizer sanitize.Sanitizer
	blobs     media.Storage
	search    personSearch
	mail      mailer
	authPW    *authpw.Service
	logger    *slog.Logger
}

func New(cfg config.Config, dataStore *store.PostgresStore, blobs media.Storage, searchService *search.Service, mailService *email.Service, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  dataStore,
		sanitizer: sanitize.NewBiography(),
		blobs:     blobs,
		search:    searchService,
		mail:      mailService,
		authPW:    authpw.NewService(dataStore),
		logger:    logger,
	}
}

// NewWithSessionStore swaps refresh-token storage to an external backend.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, blobs media.Storage, searchService *search.Service, mailService *email.Service, logger *slog.Logger) *Service {
	service := New(cfg, dataStore, blobs, searchService, mailService, logger)
	service.sessions = sessions
	return service
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// AuthPasswordService exposes the email/password authenticator.
func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authPW
}

// SMTPConfigured reports whether outbound mail is available.
func (s *Service) SMTPConfigured() bool {
	return s.mail != nil && s.mail.IsConfigured()
}

// SendVerificationMail delivers the activation link, fire-and-forget.
func (s *Service) SendVerificationMail(to, userName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := s.cfg.BaseURL + "/verify-email?token=" + token
	go func() {
		if err := s.mail.SendVerificationEmail(to, userName, url); err != nil {
			s.audit("verification mail failed", "to", to, "error", err.Error())
		}
	}()
}

// SendPasswordResetMail delivers the reset link, fire-and-forget.
func (s *Service) SendPasswordResetMail(to, userName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := s.cfg.BaseURL + "/reset-password?token=" + token
	go func() {
		if err := s.mail.SendPasswordResetEmail(to, userName, url); err != nil {
			s.audit("password reset mail failed", "to", to, "error", err.Error())
		}
	}()
}

// CreateSession issues an access token and a refresh token for the user.
func (s *Service) CreateSession(ctx context.Context, userID int64) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.Username,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Username:     user.Username,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	found, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}

	// The session backend may only hold the user id; load the account so
	// the new token carries the current username and active flag.
	user, err := s.store.GetUserByID(ctx, found.ID)
	if err != nil {
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, auth.ErrInvalidToken
	}

	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		// A token for a deleted account is just an invalid token.
		if isNoRows(err) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// resolveTreeAccess loads the tree and computes the caller's level on it.
// A missing tree is TreeNotFound before any permission decision.
func (s *Service) resolveTreeAccess(ctx context.Context, treeID, userID int64) (store.FamilyTree, access.Level, error) {
	tree, err := s.store.GetTree(ctx, treeID)
	if err != nil {
		if isNoRows(err) {
			return store.FamilyTree{}, access.LevelNone, errTreeNotFound()
		}
		return store.FamilyTree{}, access.LevelNone, err
	}

	grant, err := s.store.GetCollaborator(ctx, treeID, userID)
	if err != nil {
		return store.FamilyTree{}, access.LevelNone, err
	}
	var permission *access.Permission
	if grant != nil {
		p := access.Permission(grant.Permission)
		permission = &p
	}
	level := access.Resolve(access.Tree{OwnerID: tree.OwnerID, IsPublic: tree.IsPublic}, userID, permission)
	return tree, level, nil
}

// audit emits the structured entry every mutating operation records.
func (s *Service) audit(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}
