package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- users ----

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, is_active, is_email_verified, verification_token, verification_expires_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		RETURNING id, created_at
	`, user.Username, user.Email, user.PasswordHash, user.IsActive, user.IsEmailVerified, user.VerificationToken, user.VerificationExpiresAt).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

const userColumns = `id, username, email, password_hash, is_active, is_email_verified, COALESCE(verification_token, ''), verification_expires_at, created_at`

func (s *PostgresStore) scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsEmailVerified,
		&user.VerificationToken,
		&user.VerificationExpiresAt,
		&user.CreatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID int64) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, email))
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3 WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

// VerifyUserEmail marks the account verified and active. The token is
// single use and honored only before its expiry.
func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, is_active=TRUE, verification_token=NULL, verification_expires_at=NULL
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2 WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (int64, error) {
	var userID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// ---- refresh sessions (Postgres fallback when Redis is unconfigured) ----

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.username, u.email, u.is_active
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Username, &user.Email, &user.IsActive)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ---- family trees ----

const treeColumns = `t.id, t.name, t.description, t.owner_id, u.username, t.is_public, t.created_at, t.updated_at,
	(SELECT COUNT(*) FROM tree_members tm WHERE tm.tree_id = t.id)`

func scanTree(scanner interface{ Scan(...any) error }) (FamilyTree, error) {
	var tree FamilyTree
	err := scanner.Scan(
		&tree.ID,
		&tree.Name,
		&tree.Description,
		&tree.OwnerID,
		&tree.OwnerUsername,
		&tree.IsPublic,
		&tree.CreatedAt,
		&tree.UpdatedAt,
		&tree.MemberCount,
	)
	if err != nil {
		return FamilyTree{}, err
	}
	return tree, nil
}

func (s *PostgresStore) InsertTree(ctx context.Context, tree FamilyTree) (FamilyTree, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO family_trees (name, description, owner_id, is_public)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, tree.Name, tree.Description, tree.OwnerID, tree.IsPublic).Scan(&tree.ID, &tree.CreatedAt)
	if err != nil {
		return FamilyTree{}, fmt.Errorf("insert tree: %w", err)
	}
	return tree, nil
}

func (s *PostgresStore) GetTree(ctx context.Context, treeID int64) (FamilyTree, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+treeColumns+`
		FROM family_trees t
		JOIN users u ON u.id = t.owner_id
		WHERE t.id=$1
	`, treeID)
	return scanTree(row)
}

func (s *PostgresStore) UpdateTree(ctx context.Context, treeID int64, name, description string, isPublic bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE family_trees
		SET name=$2, description=$3, is_public=$4, updated_at=NOW()
		WHERE id=$1
	`, treeID, name, description, isPublic)
	if err != nil {
		return fmt.Errorf("update tree: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTree(ctx context.Context, treeID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM family_trees WHERE id=$1`, treeID)
	if err != nil {
		return fmt.Errorf("delete tree: %w", err)
	}
	return nil
}

func (s *PostgresStore) listTrees(ctx context.Context, query string, args ...any) ([]FamilyTree, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trees: %w", err)
	}
	defer rows.Close()

	items := make([]FamilyTree, 0)
	for rows.Next() {
		tree, err := scanTree(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tree: %w", err)
		}
		items = append(items, tree)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trees: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListOwnedTrees(ctx context.Context, userID int64) ([]FamilyTree, error) {
	return s.listTrees(ctx, `
		SELECT `+treeColumns+`
		FROM family_trees t
		JOIN users u ON u.id = t.owner_id
		WHERE t.owner_id=$1
		ORDER BY t.created_at DESC
	`, userID)
}

func (s *PostgresStore) ListSharedTrees(ctx context.Context, userID int64) ([]FamilyTree, error) {
	return s.listTrees(ctx, `
		SELECT `+treeColumns+`
		FROM tree_collaborators tc
		JOIN family_trees t ON t.id = tc.tree_id
		JOIN users u ON u.id = t.owner_id
		WHERE tc.user_id=$1
		ORDER BY t.created_at DESC
	`, userID)
}

// ---- collaborators ----

// GetCollaborator returns nil without error when the user holds no grant on
// the tree; the resolver treats that as no-grant.
func (s *PostgresStore) GetCollaborator(ctx context.Context, treeID, userID int64) (*Collaborator, error) {
	var item Collaborator
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tree_id, user_id, permission, invited_at
		FROM tree_collaborators
		WHERE tree_id=$1 AND user_id=$2
	`, treeID, userID).Scan(&item.ID, &item.TreeID, &item.UserID, &item.Permission, &item.InvitedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get collaborator: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) GetCollaboratorByID(ctx context.Context, collaboratorID int64) (Collaborator, error) {
	var item Collaborator
	err := s.db.QueryRowContext(ctx, `
		SELECT tc.id, tc.tree_id, tc.user_id, tc.permission, tc.invited_at, u.username, u.email
		FROM tree_collaborators tc
		JOIN users u ON u.id = tc.user_id
		WHERE tc.id=$1
	`, collaboratorID).Scan(&item.ID, &item.TreeID, &item.UserID, &item.Permission, &item.InvitedAt, &item.Username, &item.Email)
	if err != nil {
		return Collaborator{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertCollaborator(ctx context.Context, item Collaborator) (Collaborator, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tree_collaborators (tree_id, user_id, permission)
		VALUES ($1, $2, $3)
		RETURNING id, invited_at
	`, item.TreeID, item.UserID, item.Permission).Scan(&item.ID, &item.InvitedAt)
	if err != nil {
		return Collaborator{}, fmt.Errorf("insert collaborator: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListCollaborators(ctx context.Context, treeID int64) ([]Collaborator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tc.id, tc.tree_id, tc.user_id, tc.permission, tc.invited_at, u.username, u.email
		FROM tree_collaborators tc
		JOIN users u ON u.id = tc.user_id
		WHERE tc.tree_id=$1
		ORDER BY tc.invited_at ASC
	`, treeID)
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	defer rows.Close()

	items := make([]Collaborator, 0)
	for rows.Next() {
		var item Collaborator
		if err := rows.Scan(&item.ID, &item.TreeID, &item.UserID, &item.Permission, &item.InvitedAt, &item.Username, &item.Email); err != nil {
			return nil, fmt.Errorf("scan collaborator: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collaborators: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteCollaborator(ctx context.Context, collaboratorID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tree_collaborators WHERE id=$1`, collaboratorID)
	if err != nil {
		return fmt.Errorf("delete collaborator: %w", err)
	}
	return nil
}

// ---- people & tree members ----

const personColumns = `id, first_name, middle_name, last_name, maiden_name, birth_date, birth_place,
	death_date, death_place, gender, biography, profile_photo_url, created_at`

func scanPerson(scanner interface{ Scan(...any) error }) (Person, error) {
	var person Person
	err := scanner.Scan(
		&person.ID,
		&person.FirstName,
		&person.MiddleName,
		&person.LastName,
		&person.MaidenName,
		&person.BirthDate,
		&person.BirthPlace,
		&person.DeathDate,
		&person.DeathPlace,
		&person.Gender,
		&person.Biography,
		&person.ProfilePhotoURL,
		&person.CreatedAt,
	)
	if err != nil {
		return Person{}, err
	}
	return person, nil
}

func (s *PostgresStore) InsertPerson(ctx context.Context, person Person) (Person, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO people (first_name, middle_name, last_name, maiden_name, birth_date, birth_place,
			death_date, death_place, gender, biography, profile_photo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`, person.FirstName, person.MiddleName, person.LastName, person.MaidenName, person.BirthDate,
		person.BirthPlace, person.DeathDate, person.DeathPlace, person.Gender, person.Biography,
		person.ProfilePhotoURL).Scan(&person.ID, &person.CreatedAt)
	if err != nil {
		return Person{}, fmt.Errorf("insert person: %w", err)
	}
	return person, nil
}

func (s *PostgresStore) GetPerson(ctx context.Context, personID int64) (Person, error) {
	return scanPerson(s.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE id=$1`, personID))
}

func (s *PostgresStore) UpdatePerson(ctx context.Context, person Person) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE people
		SET first_name=$2, middle_name=$3, last_name=$4, maiden_name=$5, birth_date=$6, birth_place=$7,
			death_date=$8, death_place=$9, gender=$10, biography=$11, profile_photo_url=$12
		WHERE id=$1
	`, person.ID, person.FirstName, person.MiddleName, person.LastName, person.MaidenName,
		person.BirthDate, person.BirthPlace, person.DeathDate, person.DeathPlace, person.Gender,
		person.Biography, person.ProfilePhotoURL)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertTreeMember(ctx context.Context, treeID, personID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tree_members (tree_id, person_id) VALUES ($1, $2)
		ON CONFLICT (tree_id, person_id) DO NOTHING
	`, treeID, personID)
	if err != nil {
		return fmt.Errorf("insert tree member: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsTreeMember(ctx context.Context, treeID, personID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM tree_members WHERE tree_id=$1 AND person_id=$2)
	`, treeID, personID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check tree member: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) DeleteTreeMember(ctx context.Context, treeID, personID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tree_members WHERE tree_id=$1 AND person_id=$2`, treeID, personID)
	if err != nil {
		return fmt.Errorf("delete tree member: %w", err)
	}
	return nil
}

// ListTreeMembers returns the tree's people in display order: last name then
// first name, ascending.
func (s *PostgresStore) ListTreeMembers(ctx context.Context, treeID int64) ([]Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+personColumns+`
		FROM people
		WHERE id IN (SELECT person_id FROM tree_members WHERE tree_id=$1)
		ORDER BY last_name ASC, first_name ASC
	`, treeID)
	if err != nil {
		return nil, fmt.Errorf("list tree members: %w", err)
	}
	defer rows.Close()

	items := make([]Person, 0)
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		items = append(items, person)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return items, nil
}

// ---- relationships ----

func (s *PostgresStore) InsertRelationship(ctx context.Context, item Relationship) (Relationship, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO relationships (parent_id, child_id, type)
		VALUES ($1, $2, $3)
		RETURNING id
	`, item.ParentID, item.ChildID, item.Type).Scan(&item.ID)
	if err != nil {
		return Relationship{}, fmt.Errorf("insert relationship: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) GetRelationship(ctx context.Context, relationshipID int64) (Relationship, error) {
	var item Relationship
	err := s.db.QueryRowContext(ctx, `
		SELECT id, parent_id, child_id, type FROM relationships WHERE id=$1
	`, relationshipID).Scan(&item.ID, &item.ParentID, &item.ChildID, &item.Type)
	if err != nil {
		return Relationship{}, err
	}
	return item, nil
}

func (s *PostgresStore) RelationshipExists(ctx context.Context, parentID, childID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM relationships WHERE parent_id=$1 AND child_id=$2)
	`, parentID, childID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check relationship: %w", err)
	}
	return exists, nil
}

// PersonHasRelationships reports whether any relationship row references the
// person as parent or child. The check spans all trees on purpose.
func (s *PostgresStore) PersonHasRelationships(ctx context.Context, personID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM relationships WHERE parent_id=$1 OR child_id=$1)
	`, personID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check person relationships: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) DeleteRelationship(ctx context.Context, relationshipID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM relationships WHERE id=$1`, relationshipID)
	if err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	return nil
}

// ListTreeRelationships returns edges where both endpoints are members of
// the tree, which is every edge created through the tree's own endpoints.
func (s *PostgresStore) ListTreeRelationships(ctx context.Context, treeID int64) ([]Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.parent_id, r.child_id, r.type
		FROM relationships r
		JOIN tree_members pm ON pm.person_id = r.parent_id AND pm.tree_id = $1
		JOIN tree_members cm ON cm.person_id = r.child_id AND cm.tree_id = $1
		ORDER BY r.id ASC
	`, treeID)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	items := make([]Relationship, 0)
	for rows.Next() {
		var item Relationship
		if err := rows.Scan(&item.ID, &item.ParentID, &item.ChildID, &item.Type); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relationships: %w", err)
	}
	return items, nil
}

// ---- media ----

func (s *PostgresStore) InsertMedia(ctx context.Context, item Media) (Media, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO media (person_id, file_name, storage_key, content_hash, caption, media_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, uploaded_at
	`, item.PersonID, item.FileName, item.StorageKey, item.ContentHash, item.Caption, item.MediaType).
		Scan(&item.ID, &item.UploadedAt)
	if err != nil {
		return Media{}, fmt.Errorf("insert media: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) GetMedia(ctx context.Context, mediaID int64) (Media, error) {
	var item Media
	err := s.db.QueryRowContext(ctx, `
		SELECT id, person_id, file_name, storage_key, content_hash, caption, media_type, uploaded_at
		FROM media WHERE id=$1
	`, mediaID).Scan(&item.ID, &item.PersonID, &item.FileName, &item.StorageKey, &item.ContentHash,
		&item.Caption, &item.MediaType, &item.UploadedAt)
	if err != nil {
		return Media{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListPersonMedia(ctx context.Context, personID int64) ([]Media, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, person_id, file_name, storage_key, content_hash, caption, media_type, uploaded_at
		FROM media
		WHERE person_id=$1
		ORDER BY uploaded_at DESC
	`, personID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	items := make([]Media, 0)
	for rows.Next() {
		var item Media
		if err := rows.Scan(&item.ID, &item.PersonID, &item.FileName, &item.StorageKey, &item.ContentHash,
			&item.Caption, &item.MediaType, &item.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteMedia(ctx context.Context, mediaID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM media WHERE id=$1`, mediaID)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}

// ---- search fallback ----

// SearchPersons is the Postgres fallback for person search: substring match
// over name fields, restricted to trees the viewer can see.
func (s *PostgresStore) SearchPersons(ctx context.Context, viewerID int64, query string, limit int) ([]PersonSearchRow, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.first_name, p.middle_name, p.last_name, p.maiden_name, p.birth_date, p.birth_place,
			p.death_date, p.death_place, p.gender, p.biography, p.profile_photo_url, p.created_at,
			t.id, t.name
		FROM people p
		JOIN tree_members tm ON tm.person_id = p.id
		JOIN family_trees t ON t.id = tm.tree_id
		WHERE (p.first_name ILIKE $2 OR p.last_name ILIKE $2 OR p.maiden_name ILIKE $2)
			AND (t.owner_id = $1 OR t.is_public
				OR EXISTS(SELECT 1 FROM tree_collaborators tc WHERE tc.tree_id = t.id AND tc.user_id = $1))
		ORDER BY p.last_name ASC, p.first_name ASC
		LIMIT $3
	`, viewerID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search persons: %w", err)
	}
	defer rows.Close()

	items := make([]PersonSearchRow, 0)
	for rows.Next() {
		var item PersonSearchRow
		if err := rows.Scan(
			&item.ID, &item.FirstName, &item.MiddleName, &item.LastName, &item.MaidenName,
			&item.BirthDate, &item.BirthPlace, &item.DeathDate, &item.DeathPlace, &item.Gender,
			&item.Biography, &item.ProfilePhotoURL, &item.CreatedAt,
			&item.TreeID, &item.TreeName,
		); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return items, nil
}
