package services

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/AnshRaj112/lovedoctor-backend/internal/database"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"go.uber.org/zap"
)

// CoachProfileStore reads and updates coach profiles.
type CoachProfileStore interface {
	GetCoach(ctx context.Context, id int64) (*models.Coach, error)
	UpdateCoachProfile(ctx context.Context, id int64, p models.CoachProfilePatch) (*models.Coach, error)
}

type CoachProfileService struct {
	store    CoachProfileStore
	uploader ImageUploader
	log      *zap.Logger
}

// NewCoachProfileService builds the service; uploader may be nil when image
// storage is not configured.
func NewCoachProfileService(store CoachProfileStore, uploader ImageUploader, log *zap.Logger) *CoachProfileService {
	return &CoachProfileService{store: store, uploader: uploader, log: log}
}

// Get returns the public profile, or an empty profile for an unknown id.
func (s *CoachProfileService) Get(ctx context.Context, id int64) (*models.CoachProfile, error) {
	const op = "profile.Get"

	if id <= 0 {
		return nil, invalidInput(op, "Coach ID is required")
	}
	c, err := s.store.GetCoach(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return models.EmptyCoachProfile(id), nil
	}
	if err != nil {
		return nil, persistenceFailure(op, err)
	}
	return c.Profile(), nil
}

// authorize checks that the session belongs to the coach being edited.
func authorize(op string, claims *SessionClaims, id int64) error {
	if claims == nil {
		return newError(KindUnauthorized, op, "Unauthorized", nil)
	}
	if claims.Role != models.RoleCoach || claims.AccountID() != strconv.FormatInt(id, 10) {
		return newError(KindForbidden, op, "You can only edit your own profile", nil)
	}
	return nil
}

func (s *CoachProfileService) Update(ctx context.Context, claims *SessionClaims, id int64, p models.CoachProfilePatch) (*models.CoachProfile, error) {
	const op = "profile.Update"

	if id <= 0 {
		return nil, invalidInput(op, "Coach ID is required")
	}
	if err := authorize(op, claims, id); err != nil {
		return nil, err
	}

	p.Name = strings.TrimSpace(p.Name)
	p.Title = strings.TrimSpace(p.Title)
	p.Specialty = strings.TrimSpace(p.Specialty)
	if p.Tags != nil {
		tags := models.NormalizeTags(*p.Tags)
		p.Tags = &tags
	}

	c, err := s.store.UpdateCoachProfile(ctx, id, p)
	if errors.Is(err, database.ErrNotFound) {
		return nil, newError(KindNotFound, op, "Coach not found", err)
	}
	if err != nil {
		return nil, persistenceFailure(op, err)
	}
	s.log.Info("coach profile updated", zap.Int64("coach_id", id))
	return c.Profile(), nil
}

// UploadImage stores a new profile image and points the profile at it.
func (s *CoachProfileService) UploadImage(ctx context.Context, claims *SessionClaims, id int64, file io.Reader) (*models.CoachProfile, error) {
	const op = "profile.UploadImage"

	if err := authorize(op, claims, id); err != nil {
		return nil, err
	}
	if s.uploader == nil {
		return nil, newError(KindUpstream, op, "Image upload is not configured", nil)
	}

	url, err := s.uploader.UploadImage(ctx, file, "coach-"+strconv.FormatInt(id, 10))
	if err != nil {
		s.log.Error("coach image upload failed", zap.Int64("coach_id", id), zap.Error(err))
		return nil, upstreamFailure(KindUpstream, op, err)
	}
	return s.Update(ctx, claims, id, models.CoachProfilePatch{ImageURL: &url})
}

// AccountService serves the account behind a session.
type AccountService struct {
	accounts AccountReader
}

func NewAccountService(accounts AccountReader) *AccountService {
	return &AccountService{accounts: accounts}
}

// Current loads the account the session belongs to, using the session role.
func (s *AccountService) Current(ctx context.Context, claims *SessionClaims) (*models.Account, error) {
	const op = "accounts.Current"

	if claims == nil {
		return nil, newError(KindUnauthorized, op, "Unauthorized", nil)
	}

	var (
		acct *models.Account
		err  error
	)
	if claims.Role == models.RoleCoach {
		var id int64
		id, err = strconv.ParseInt(claims.AccountID(), 10, 64)
		if err != nil {
			return nil, newError(KindNotFound, op, "User not found", err)
		}
		var c *models.Coach
		if c, err = s.accounts.GetCoach(ctx, id); err == nil {
			acct = models.CoachAccount(c)
		}
	} else {
		var u *models.User
		if u, err = s.accounts.GetUser(ctx, claims.AccountID()); err == nil {
			acct = models.UserAccount(u)
		}
	}

	if errors.Is(err, database.ErrNotFound) {
		return nil, newError(KindNotFound, op, "User not found", err)
	}
	if err != nil {
		return nil, persistenceFailure(op, err)
	}
	return acct, nil
}
