package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/redsalud/turnos-board/internal/domain"
)

// ErrProfileNotFound is returned when no profile matches the lookup.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepo looks up principals and their roles in the profiles table.
type ProfileRepo struct{ db *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// Authenticate matches an email and password hash against the profiles
// table. A miss returns ErrProfileNotFound without saying which of the two
// was wrong.
func (r *ProfileRepo) Authenticate(ctx context.Context, email, passwordHash string) (*domain.Profile, error) {
	var p domain.Profile
	var role string
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, email, COALESCE(role, 'viewer'), created_at
		FROM profiles
		WHERE email = $1 AND password_hash = $2
	`, email, passwordHash).Scan(&p.UserID, &p.Email, &role, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate profile: %w", err)
	}
	p.Role = domain.Role(role)
	return &p, nil
}

// CreateProfile provisions a principal. Re-running for an existing email
// updates the password hash and role instead of failing, so the seed flow
// is repeatable.
func (r *ProfileRepo) CreateProfile(ctx context.Context, p *domain.Profile, passwordHash string) error {
	if p.UserID == "" {
		p.UserID = uuid.New().String()
	}
	if p.Role == "" {
		p.Role = domain.RoleViewer
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (email) DO UPDATE SET password_hash = $3, role = $4
	`, p.UserID, p.Email, passwordHash, string(p.Role))
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// GetRole returns the role recorded for a user. Unknown users are viewers;
// only an explicit admin row grants ingest rights.
func (r *ProfileRepo) GetRole(ctx context.Context, userID string) (domain.Role, error) {
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(role, 'viewer') FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RoleViewer, nil
	}
	if err != nil {
		return "", fmt.Errorf("get role: %w", err)
	}
	return domain.Role(role), nil
}
