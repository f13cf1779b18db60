package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestResolver(store AccountStore) *Resolver {
	return NewResolver(store, zap.NewNop())
}

func TestResolve_CreatesUserThenReturnsSameID(t *testing.T) {
	store := newMemStore()
	r := newTestResolver(store)
	in := ResolveInput{Role: models.RoleUser, Contact: models.Contact{Phone: "9999999999", CountryCode: "+91"}}

	first, err := r.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, first.Role)
	assert.Equal(t, "9999999999", first.User.Phone)
	assert.Equal(t, "+91", first.User.CountryCode)
	assert.NotEmpty(t, first.ID())
	assert.Empty(t, first.User.ChatUserID)

	second, err := r.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, 1, store.userCount())
}

func TestResolve_DefaultsCountryCode(t *testing.T) {
	r := newTestResolver(newMemStore())
	acct, err := r.Resolve(context.Background(), ResolveInput{Role: models.RoleUser, Contact: models.Contact{Phone: "98765 43210"}})
	require.NoError(t, err)
	assert.Equal(t, "9876543210", acct.User.Phone)
	assert.Equal(t, models.DefaultCountryCode, acct.User.CountryCode)
}

func TestResolve_BackfillKeepsStoredName(t *testing.T) {
	store := newMemStore()
	r := newTestResolver(store)
	ctx := context.Background()

	_, err := r.Resolve(ctx, ResolveInput{Role: models.RoleUser, Contact: models.Contact{Phone: "111"}, Name: "Alice"})
	require.NoError(t, err)

	acct, err := r.Resolve(ctx, ResolveInput{Role: models.RoleUser, Contact: models.Contact{Phone: "111", Email: "Alice@Example.com"}})
	require.NoError(t, err)
	assert.Equal(t, "Alice", acct.User.Name)
	assert.Equal(t, "alice@example.com", acct.User.Email)
	assert.NotNil(t, acct.User.LastLoginAt)
}

func TestResolve_EmailMatchFindsPhoneAccount(t *testing.T) {
	store := newMemStore()
	r := newTestResolver(store)
	ctx := context.Background()

	a, err := r.Resolve(ctx, ResolveInput{Role: models.RoleUser, Contact: models.Contact{Email: "bob@example.com"}})
	require.NoError(t, err)
	b, err := r.Resolve(ctx, ResolveInput{Role: models.RoleUser, Contact: models.Contact{Phone: "222", Email: "bob@example.com"}})
	require.NoError(t, err)

	assert.Equal(t, a.ID(), b.ID())
	assert.Equal(t, "222", b.User.Phone)
}

func TestResolve_VerifierIDPreferred(t *testing.T) {
	store := newMemStore()
	r := newTestResolver(store)
	ctx := context.Background()

	a, err := r.Resolve(ctx, ResolveInput{Role: models.RoleUser, Contact: models.Contact{Phone: "333"}, VerifierID: "MO-1"})
	require.NoError(t, err)

	// The phone changed but the verifier id still identifies the account.
	b, err := r.Resolve(ctx, ResolveInput{Role: models.RoleUser, Contact: models.Contact{Phone: "444"}, VerifierID: "MO-1"})
	require.NoError(t, err)
	assert.Equal(t, a.ID(), b.ID())
	assert.Equal(t, "FindUserBy:verifier_id", store.calls[len(store.calls)-2])
}

func TestResolve_RoleIsolation(t *testing.T) {
	store := newMemStore()
	r := newTestResolver(store)
	ctx := context.Background()
	contact := models.Contact{Phone: "9999999999"}

	user, err := r.Resolve(ctx, ResolveInput{Role: models.RoleUser, Contact: contact})
	require.NoError(t, err)
	coach, err := r.Resolve(ctx, ResolveInput{Role: models.RoleCoach, Contact: contact})
	require.NoError(t, err)

	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, models.RoleCoach, coach.Role)
	assert.Nil(t, coach.User)
	assert.Len(t, store.coaches, 1)
	assert.Equal(t, 1, store.userCount())
}

func TestResolve_CoachDefaults(t *testing.T) {
	r := newTestResolver(newMemStore())
	acct, err := r.Resolve(context.Background(), ResolveInput{Role: models.RoleCoach, Contact: models.Contact{Phone: "9876501234"}})
	require.NoError(t, err)

	c := acct.Coach
	assert.Equal(t, "Coach 1234", c.Name)
	assert.Equal(t, models.DefaultCoachTitle, c.Title)
	assert.True(t, c.IsActive)
	assert.True(t, strings.HasPrefix(c.ChatUID, "coach-"))
	assert.Equal(t, strings.ToLower(c.ChatUID), c.ChatUID)
}

func TestResolve_CoachChatUIDStable(t *testing.T) {
	r := newTestResolver(newMemStore())
	ctx := context.Background()
	in := ResolveInput{Role: models.RoleCoach, Contact: models.Contact{Email: "coach@example.com"}, Name: "Priya"}

	a, err := r.Resolve(ctx, in)
	require.NoError(t, err)
	b, err := r.Resolve(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, a.Coach.ChatUID, b.Coach.ChatUID)
}

func TestPlaceholderCoachName(t *testing.T) {
	assert.Equal(t, "Coach 4321", PlaceholderCoachName("+919999994321"))
	assert.Equal(t, "Coach New", PlaceholderCoachName(""))
}

func TestResolve_RecoversFromCreateRace(t *testing.T) {
	store := newMemStore()
	r := newTestResolver(store)
	ctx := context.Background()
	in := ResolveInput{Role: models.RoleUser, Contact: models.Contact{Phone: "555"}}

	store.createHook = func() {
		store.mu.Lock()
		store.users["winner"] = &models.User{ID: "winner", Phone: "555", CountryCode: "+91"}
		store.mu.Unlock()
	}

	acct, err := r.Resolve(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "winner", acct.ID())
	assert.Equal(t, 1, store.userCount())
}

func TestResolve_BackfillConflictKeepsStoredContact(t *testing.T) {
	store := newMemStore()
	store.users["a"] = &models.User{ID: "a", Phone: "100"}
	store.users["b"] = &models.User{ID: "b", Email: "taken@example.com"}
	r := newTestResolver(store)

	acct, err := r.Resolve(context.Background(), ResolveInput{
		Role:    models.RoleUser,
		Contact: models.Contact{Phone: "100", Email: "taken@example.com"},
		Name:    "Ann",
	})
	require.NoError(t, err)
	assert.Equal(t, "a", acct.ID())
	assert.Empty(t, acct.User.Email)
	assert.Equal(t, "Ann", acct.User.Name)
}

func TestResolve_InvalidInput(t *testing.T) {
	r := newTestResolver(newMemStore())

	_, err := r.Resolve(context.Background(), ResolveInput{Role: models.RoleUser})
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = r.Resolve(context.Background(), ResolveInput{Role: "admin", Contact: models.Contact{Phone: "1"}})
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

type brokenStore struct {
	*memStore
}

func (brokenStore) FindUserBy(ctx context.Context, field models.LookupField, value string) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func TestResolve_StoreFailureIsPersistenceFailure(t *testing.T) {
	r := newTestResolver(brokenStore{newMemStore()})
	_, err := r.Resolve(context.Background(), ResolveInput{Role: models.RoleUser, Contact: models.Contact{Phone: "1"}})
	require.Error(t, err)
	assert.Equal(t, KindPersistence, KindOf(err))
}
