package services

import (
	"context"
	"errors"
	"strings"

	"github.com/AnshRaj112/lovedoctor-backend/internal/database"
	"github.com/AnshRaj112/lovedoctor-backend/internal/metrics"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/AnshRaj112/lovedoctor-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// AccountStore is the persistent store for both account kinds.
type AccountStore interface {
	FindUserBy(ctx context.Context, field models.LookupField, value string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	TouchUser(ctx context.Context, id string, b models.Backfill) (*models.User, error)
	SaveIntake(ctx context.Context, id string, in models.Intake) (*models.User, error)
	SetUserChatIdentity(ctx context.Context, id, chatUID, memberID string) error

	FindCoachBy(ctx context.Context, field models.LookupField, value string) (*models.Coach, error)
	GetCoach(ctx context.Context, id int64) (*models.Coach, error)
	CreateCoach(ctx context.Context, c *models.Coach) (*models.Coach, error)
	TouchCoach(ctx context.Context, id int64, b models.Backfill) (*models.Coach, error)
	UpdateCoachProfile(ctx context.Context, id int64, p models.CoachProfilePatch) (*models.Coach, error)
}

// maxResolveAttempts bounds the find/create loop when creates keep losing
// unique-constraint races.
const maxResolveAttempts = 3

type ResolveInput struct {
	Role       models.Role
	Contact    models.Contact
	Name       string
	VerifierID string
}

// Resolver finds or creates exactly one account of the requested role for a
// verified contact.
type Resolver struct {
	store      AccountStore
	log        *zap.Logger
	newUserID  func() string
	newChatUID func() string
}

func NewResolver(store AccountStore, log *zap.Logger) *Resolver {
	return &Resolver{
		store:      store,
		log:        log,
		newUserID:  uuid.NewString,
		newChatUID: newCoachChatUID,
	}
}

func newCoachChatUID() string {
	return "coach-" + strings.ToLower(ulid.Make().String())
}

type resolveOutcome string

const (
	outcomeCreated           resolveOutcome = "created"
	outcomeExisting          resolveOutcome = "existing"
	outcomeConflictRecovered resolveOutcome = "conflict_recovered"
	outcomeError             resolveOutcome = "error"
)

// Resolve looks the account up by verifier id, then phone, then email. A hit
// refreshes last login and backfills non-empty incoming fields; a miss creates
// the account. A create that loses a uniqueness race re-reads the winner.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (*models.Account, error) {
	const op = "resolver.Resolve"

	if !in.Role.Valid() {
		return nil, invalidInput(op, "Unknown account role")
	}
	in.Contact = in.Contact.Normalize()
	in.Contact.Phone = utils.NormalizePhone(in.Contact.Phone)
	in.Name = strings.TrimSpace(in.Name)
	in.VerifierID = strings.TrimSpace(in.VerifierID)
	if in.Contact.IsEmpty() {
		return nil, invalidInput(op, "Phone or email is required")
	}

	var (
		acct    *models.Account
		outcome resolveOutcome
		err     error
	)
	switch in.Role {
	case models.RoleCoach:
		var c *models.Coach
		c, outcome, err = r.resolveCoach(ctx, in)
		if err == nil {
			acct = models.CoachAccount(c)
		}
	default:
		var u *models.User
		u, outcome, err = r.resolveUser(ctx, in)
		if err == nil {
			acct = models.UserAccount(u)
		}
	}
	if err != nil {
		outcome = outcomeError
	}
	metrics.AccountResolutions.WithLabelValues(string(in.Role), string(outcome)).Inc()
	if err != nil {
		return nil, persistenceFailure(op, err)
	}

	r.log.Info("account resolved",
		zap.String("role", string(in.Role)),
		zap.String("account_id", acct.ID()),
		zap.String("outcome", string(outcome)),
		zap.String("phone", utils.MaskPhone(in.Contact.Phone)),
		zap.String("email", utils.MaskEmail(in.Contact.Email)),
	)
	return acct, nil
}

type lookupKey struct {
	field models.LookupField
	value string
}

// lookupKeys is ordered so repeated calls with the same input always probe
// the same records first.
func lookupKeys(in ResolveInput) []lookupKey {
	var keys []lookupKey
	if in.VerifierID != "" {
		keys = append(keys, lookupKey{models.LookupVerifierID, in.VerifierID})
	}
	if in.Contact.Phone != "" {
		keys = append(keys, lookupKey{models.LookupPhone, in.Contact.Phone})
	}
	if in.Contact.Email != "" {
		keys = append(keys, lookupKey{models.LookupEmail, in.Contact.Email})
	}
	return keys
}

func backfillOf(in ResolveInput) models.Backfill {
	return models.Backfill{
		Phone:       in.Contact.Phone,
		Email:       in.Contact.Email,
		CountryCode: in.Contact.CountryCode,
		Name:        in.Name,
		VerifierID:  in.VerifierID,
	}
}

// withoutKeys drops the unique fields from a backfill. Used when a backfill
// would move a phone or email that another record already owns.
func withoutKeys(b models.Backfill) models.Backfill {
	return models.Backfill{CountryCode: b.CountryCode, Name: b.Name}
}

func countryCodeOrDefault(c string) string {
	if c == "" {
		return models.DefaultCountryCode
	}
	return c
}

func (r *Resolver) findUser(ctx context.Context, in ResolveInput) (*models.User, error) {
	for _, k := range lookupKeys(in) {
		u, err := r.store.FindUserBy(ctx, k.field, k.value)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}
	return nil, database.ErrNotFound
}

func (r *Resolver) touchUser(ctx context.Context, u *models.User, in ResolveInput) (*models.User, error) {
	b := backfillOf(in)
	updated, err := r.store.TouchUser(ctx, u.ID, b)
	if errors.Is(err, database.ErrConflict) {
		r.log.Warn("backfill conflicts with another user, keeping stored contact", zap.String("user_id", u.ID), zap.Error(err))
		updated, err = r.store.TouchUser(ctx, u.ID, withoutKeys(b))
	}
	return updated, err
}

func (r *Resolver) resolveUser(ctx context.Context, in ResolveInput) (*models.User, resolveOutcome, error) {
	conflicted := false
	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		u, err := r.findUser(ctx, in)
		if err == nil {
			updated, err := r.touchUser(ctx, u, in)
			if err != nil {
				return nil, outcomeError, err
			}
			if conflicted {
				return updated, outcomeConflictRecovered, nil
			}
			return updated, outcomeExisting, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, outcomeError, err
		}

		created, err := r.store.CreateUser(ctx, &models.User{
			ID:          r.newUserID(),
			Phone:       in.Contact.Phone,
			Email:       in.Contact.Email,
			CountryCode: countryCodeOrDefault(in.Contact.CountryCode),
			Name:        in.Name,
			VerifierID:  in.VerifierID,
		})
		if err == nil {
			return created, outcomeCreated, nil
		}
		if !errors.Is(err, database.ErrConflict) {
			return nil, outcomeError, err
		}
		r.log.Info("user create lost a uniqueness race, re-reading", zap.Int("attempt", attempt+1), zap.Error(err))
		conflicted = true
	}
	return nil, outcomeError, errors.New("user resolution did not converge")
}

func (r *Resolver) findCoach(ctx context.Context, in ResolveInput) (*models.Coach, error) {
	for _, k := range lookupKeys(in) {
		c, err := r.store.FindCoachBy(ctx, k.field, k.value)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}
	return nil, database.ErrNotFound
}

func (r *Resolver) touchCoach(ctx context.Context, c *models.Coach, in ResolveInput) (*models.Coach, error) {
	b := backfillOf(in)
	updated, err := r.store.TouchCoach(ctx, c.ID, b)
	if errors.Is(err, database.ErrConflict) {
		r.log.Warn("backfill conflicts with another coach, keeping stored contact", zap.Int64("coach_id", c.ID), zap.Error(err))
		updated, err = r.store.TouchCoach(ctx, c.ID, withoutKeys(b))
	}
	return updated, err
}

// PlaceholderCoachName is used for coaches created without a name.
func PlaceholderCoachName(phone string) string {
	if last4 := utils.LastN(phone, 4); last4 != "" {
		return "Coach " + last4
	}
	return "Coach New"
}

func (r *Resolver) resolveCoach(ctx context.Context, in ResolveInput) (*models.Coach, resolveOutcome, error) {
	conflicted := false
	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		c, err := r.findCoach(ctx, in)
		if err == nil {
			updated, err := r.touchCoach(ctx, c, in)
			if err != nil {
				return nil, outcomeError, err
			}
			if conflicted {
				return updated, outcomeConflictRecovered, nil
			}
			return updated, outcomeExisting, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, outcomeError, err
		}

		name := in.Name
		if name == "" {
			name = PlaceholderCoachName(in.Contact.Phone)
		}
		created, err := r.store.CreateCoach(ctx, &models.Coach{
			Phone:       in.Contact.Phone,
			Email:       in.Contact.Email,
			CountryCode: countryCodeOrDefault(in.Contact.CountryCode),
			Name:        name,
			Title:       models.DefaultCoachTitle,
			ChatUID:     r.newChatUID(),
			IsActive:    true,
			VerifierID:  in.VerifierID,
		})
		if err == nil {
			return created, outcomeCreated, nil
		}
		if !errors.Is(err, database.ErrConflict) {
			return nil, outcomeError, err
		}
		r.log.Info("coach create lost a uniqueness race, re-reading", zap.Int("attempt", attempt+1), zap.Error(err))
		conflicted = true
	}
	return nil, outcomeError, errors.New("coach resolution did not converge")
}
