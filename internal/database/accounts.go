package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("unique constraint violation")
)

const (
	pqUniqueViolation  = "23505"
	pqInvalidTextInput = "22P02"
)

const userColumns = `id, COALESCE(phone, '') AS phone, COALESCE(email, '') AS email, country_code,
	COALESCE(name, '') AS name, COALESCE(age_range, '') AS age_range, COALESCE(gender, '') AS gender,
	COALESCE(current_situation, '') AS current_situation, situations,
	COALESCE(chat_user_id, '') AS chat_user_id, COALESCE(chat_member_id, '') AS chat_member_id,
	COALESCE(verifier_id, '') AS verifier_id, last_login_at, created_at, updated_at`

const coachColumns = `id, COALESCE(phone, '') AS phone, COALESCE(email, '') AS email, country_code,
	name, title, specialty, bio, tags, image_url, chat_uid,
	COALESCE(chat_member_id, '') AS chat_member_id, is_active,
	COALESCE(verifier_id, '') AS verifier_id, last_login_at, created_at, updated_at`

// AccountRepository stores users and coaches in PostgreSQL. Each table carries
// partial unique indexes on phone, email and verifier_id, so concurrent
// first-time creates for one contact surface as ErrConflict.
type AccountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func lookupColumn(field models.LookupField) (string, error) {
	switch field {
	case models.LookupVerifierID, models.LookupPhone, models.LookupEmail:
		return string(field), nil
	}
	return "", fmt.Errorf("unsupported lookup field %q", field)
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
		case pqInvalidTextInput:
			return ErrNotFound
		}
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *AccountRepository) FindUserBy(ctx context.Context, field models.LookupField, value string) (*models.User, error) {
	col, err := lookupColumn(field)
	if err != nil {
		return nil, err
	}
	var u models.User
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + col + ` = $1 LIMIT 1`
	if err := r.db.GetContext(ctx, &u, q, value); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (r *AccountRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (r *AccountRepository) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	var out models.User
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO users (id, phone, email, country_code, name, verifier_id, last_login_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, ''), NOW())
		RETURNING `+userColumns,
		u.ID, u.Phone, u.Email, u.CountryCode, u.Name, u.VerifierID)
	if err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

// TouchUser refreshes last login and backfills non-empty incoming values.
// A non-empty verifier id replaces the stored one.
func (r *AccountRepository) TouchUser(ctx context.Context, id string, b models.Backfill) (*models.User, error) {
	var out models.User
	err := r.db.GetContext(ctx, &out, `
		UPDATE users SET
			phone = COALESCE(NULLIF($2, ''), phone),
			email = COALESCE(NULLIF($3, ''), email),
			country_code = COALESCE(NULLIF($4, ''), country_code),
			name = COALESCE(NULLIF($5, ''), name),
			verifier_id = COALESCE(NULLIF($6, ''), verifier_id),
			last_login_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, b.Phone, b.Email, b.CountryCode, b.Name, b.VerifierID)
	if err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

// SaveIntake overwrites the current situation and appends it to the history.
func (r *AccountRepository) SaveIntake(ctx context.Context, id string, in models.Intake) (*models.User, error) {
	var out models.User
	err := r.db.GetContext(ctx, &out, `
		UPDATE users SET
			name = $2,
			age_range = $3,
			gender = $4,
			current_situation = $5,
			situations = array_append(situations, $5::text),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, in.Name, string(in.AgeRange), string(in.Gender), in.Situation)
	if err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

// SetUserChatIdentity records the chat identity once; later calls keep the first value.
func (r *AccountRepository) SetUserChatIdentity(ctx context.Context, id, chatUID, memberID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			chat_user_id = COALESCE(chat_user_id, $2),
			chat_member_id = COALESCE(chat_member_id, NULLIF($3, '')),
			updated_at = NOW()
		WHERE id = $1`,
		id, chatUID, memberID)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepository) FindCoachBy(ctx context.Context, field models.LookupField, value string) (*models.Coach, error) {
	col, err := lookupColumn(field)
	if err != nil {
		return nil, err
	}
	var c models.Coach
	q := `SELECT ` + coachColumns + ` FROM coaches WHERE ` + col + ` = $1 LIMIT 1`
	if err := r.db.GetContext(ctx, &c, q, value); err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (r *AccountRepository) GetCoach(ctx context.Context, id int64) (*models.Coach, error) {
	var c models.Coach
	if err := r.db.GetContext(ctx, &c, `SELECT `+coachColumns+` FROM coaches WHERE id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (r *AccountRepository) CreateCoach(ctx context.Context, c *models.Coach) (*models.Coach, error) {
	var out models.Coach
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO coaches (phone, email, country_code, name, title, specialty, bio, tags, image_url, chat_uid, is_active, verifier_id, last_login_at)
		VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4, $5, '', '', '{}', '', $6, TRUE, NULLIF($7, ''), NOW())
		RETURNING `+coachColumns,
		c.Phone, c.Email, c.CountryCode, c.Name, c.Title, c.ChatUID, c.VerifierID)
	if err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

func (r *AccountRepository) TouchCoach(ctx context.Context, id int64, b models.Backfill) (*models.Coach, error) {
	var out models.Coach
	err := r.db.GetContext(ctx, &out, `
		UPDATE coaches SET
			phone = COALESCE(NULLIF($2, ''), phone),
			email = COALESCE(NULLIF($3, ''), email),
			country_code = COALESCE(NULLIF($4, ''), country_code),
			name = COALESCE(NULLIF($5, ''), name),
			verifier_id = COALESCE(NULLIF($6, ''), verifier_id),
			last_login_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+coachColumns,
		id, b.Phone, b.Email, b.CountryCode, b.Name, b.VerifierID)
	if err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

func (r *AccountRepository) UpdateCoachProfile(ctx context.Context, id int64, p models.CoachProfilePatch) (*models.Coach, error) {
	var tags interface{}
	if p.Tags != nil {
		tags = pq.Array(models.NormalizeTags(*p.Tags))
	}
	var out models.Coach
	err := r.db.GetContext(ctx, &out, `
		UPDATE coaches SET
			name = COALESCE(NULLIF($2, ''), name),
			title = COALESCE(NULLIF($3, ''), title),
			specialty = COALESCE(NULLIF($4, ''), specialty),
			bio = COALESCE($5, bio),
			image_url = COALESCE($6, image_url),
			tags = COALESCE($7::text[], tags),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+coachColumns,
		id, p.Name, p.Title, p.Specialty, p.Bio, p.ImageURL, tags)
	if err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}
