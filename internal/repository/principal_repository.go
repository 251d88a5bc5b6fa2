package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/videotube-identity/internal/model"
)

const principalColumns = "id,username,email,full_name,avatar,cover_image,password_hash,role,refresh_token_hash,created_at,updated_at"

// PrincipalRepo is the credential store: it persists principals together
// with the digest of their single live refresh token.
type PrincipalRepo struct{ DB *sql.DB }

func NewPrincipalRepo(db *sql.DB) *PrincipalRepo { return &PrincipalRepo{DB: db} }

// SaveOptions tunes Save. SkipValidation writes the record as-is, for
// callers that only touched fields which cannot break the invariants.
type SaveOptions struct {
	SkipValidation bool
}

// Create inserts p. An empty ID is replaced with a fresh UUID; username
// and email are normalized first. Duplicate username or email yields
// ErrConflict.
func (r *PrincipalRepo) Create(ctx context.Context, p *model.Principal) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = model.RoleUser
	}
	p.Username = model.NormalizeUsername(p.Username)
	p.Email = model.NormalizeEmail(p.Email)
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid principal: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id,username,email,full_name,avatar,cover_image,password_hash,role,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)",
		p.ID, p.Username, p.Email, p.FullName, p.Avatar, p.CoverImage, p.PasswordHash, p.Role, now, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert principal: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	p.Refresh = model.Absent()
	return nil
}

// GetByID fetches a principal by id.
func (r *PrincipalRepo) GetByID(ctx context.Context, id string) (model.Principal, error) {
	return r.getOne(ctx, "SELECT "+principalColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// GetByUsername fetches a principal by normalized username.
func (r *PrincipalRepo) GetByUsername(ctx context.Context, username string) (model.Principal, error) {
	return r.getOne(ctx, "SELECT "+principalColumns+" FROM users WHERE username=? LIMIT 1", model.NormalizeUsername(username))
}

// GetByUsernameOrEmail fetches the principal matching either key. Empty
// keys are ignored; when both are empty the result is ErrNotFound.
func (r *PrincipalRepo) GetByUsernameOrEmail(ctx context.Context, username, email string) (model.Principal, error) {
	var (
		conds []string
		args  []any
	)
	if u := model.NormalizeUsername(username); u != "" {
		conds = append(conds, "username=?")
		args = append(args, u)
	}
	if e := model.NormalizeEmail(email); e != "" {
		conds = append(conds, "email=?")
		args = append(args, e)
	}
	if len(conds) == 0 {
		return model.Principal{}, ErrNotFound
	}
	q := "SELECT " + principalColumns + " FROM users WHERE " + strings.Join(conds, " OR ") + " LIMIT 1"
	return r.getOne(ctx, q, args...)
}

// Save updates the profile columns of p. The refresh column is never
// written here; use ReplaceRefresh, CompareAndSwapRefresh or ClearRefresh.
func (r *PrincipalRepo) Save(ctx context.Context, p *model.Principal, opts SaveOptions) error {
	if !opts.SkipValidation {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid principal: %w", err)
		}
	}
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET username=?,email=?,full_name=?,avatar=?,cover_image=?,password_hash=?,role=?,updated_at=? WHERE id=?",
		p.Username, p.Email, p.FullName, p.Avatar, p.CoverImage, p.PasswordHash, p.Role, now, p.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return fmt.Errorf("update principal: %w", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// ReplaceRefresh unconditionally stores digest as the live refresh token of
// principal id, invalidating whatever was there before.
func (r *PrincipalRepo) ReplaceRefresh(ctx context.Context, id, digest string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=? WHERE id=?", digest, id)
	if err != nil {
		return fmt.Errorf("replace refresh: %w", err)
	}
	return expectRow(res)
}

// CompareAndSwapRefresh stores next only if current is still the live
// digest. The single-row UPDATE is atomic, so of several concurrent callers
// presenting the same current digest exactly one observes swapped=true.
func (r *PrincipalRepo) CompareAndSwapRefresh(ctx context.Context, id, current, next string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=? WHERE id=? AND refresh_token_hash=?", next, id, current)
	if err != nil {
		return false, fmt.Errorf("swap refresh: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap refresh: %w", err)
	}
	return n == 1, nil
}

// ClearRefresh ends the session of principal id. Clearing an absent
// session, or an unknown principal, is a successful no-op.
func (r *PrincipalRepo) ClearRefresh(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=NULL WHERE id=? AND refresh_token_hash IS NOT NULL", id); err != nil {
		return fmt.Errorf("clear refresh: %w", err)
	}
	return nil
}

func (r *PrincipalRepo) getOne(ctx context.Context, q string, args ...any) (model.Principal, error) {
	var (
		p       model.Principal
		refresh sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, q, args...).Scan(
		&p.ID, &p.Username, &p.Email, &p.FullName, &p.Avatar, &p.CoverImage,
		&p.PasswordHash, &p.Role, &refresh, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Principal{}, ErrNotFound
		}
		return model.Principal{}, fmt.Errorf("query principal: %w", err)
	}
	p.Refresh = model.Holding(refresh.String)
	return p, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
