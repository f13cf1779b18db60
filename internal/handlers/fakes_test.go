package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/middleware"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/AnshRaj112/lovedoctor-backend/internal/services"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type fakeVerifier struct {
	identity *services.VerifiedIdentity
	err      error
	tokens   []string
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (*services.VerifiedIdentity, error) {
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

type fakeResolver struct {
	inputs []services.ResolveInput
	err    error
}

func (f *fakeResolver) Resolve(ctx context.Context, in services.ResolveInput) (*models.Account, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	if in.Role == models.RoleCoach {
		return models.CoachAccount(&models.Coach{
			ID: 7, Phone: in.Contact.Phone, Email: in.Contact.Email,
			CountryCode: "+91", Name: "Coach 9999", ChatUID: "coach-abc",
		}), nil
	}
	cc := in.Contact.CountryCode
	if cc == "" {
		cc = models.DefaultCountryCode
	}
	return models.UserAccount(&models.User{
		ID: "user-1", Phone: in.Contact.Phone, Email: in.Contact.Email,
		CountryCode: cc, Name: in.Name,
	}), nil
}

type fakeSessions struct {
	issued  []*models.Account
	revoked []string
	err     error
}

func (f *fakeSessions) Issue(ctx context.Context, acct *models.Account) (string, *services.SessionClaims, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	f.issued = append(f.issued, acct)
	c := &services.SessionClaims{Role: acct.Role}
	c.Subject = acct.ID()
	c.ExpiresAt = jwt.NewNumericDate(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	return "signed-token", c, nil
}

func (f *fakeSessions) Revoke(ctx context.Context, token string) error {
	f.revoked = append(f.revoked, token)
	return nil
}

type fakeAccounts struct {
	acct *models.Account
	err  error
}

func (f *fakeAccounts) Current(ctx context.Context, claims *services.SessionClaims) (*models.Account, error) {
	if claims == nil {
		return nil, &services.Error{Kind: services.KindUnauthorized, Msg: "Unauthorized"}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.acct, nil
}

type fakeHandoff struct {
	forms  []models.IntakeForm
	result *services.HandoffResult
	user   *models.User
	err    error
}

func (f *fakeHandoff) Run(ctx context.Context, claims *services.SessionClaims, form models.IntakeForm) (*services.HandoffResult, error) {
	f.forms = append(f.forms, form)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeHandoff) SubmitIntake(ctx context.Context, userID string, form models.IntakeForm) (*models.User, error) {
	f.forms = append(f.forms, form)
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type fakeProfiles struct {
	patch    models.CoachProfilePatch
	updateID int64
	upload   string
	err      error
}

func (f *fakeProfiles) Get(ctx context.Context, id int64) (*models.CoachProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return models.EmptyCoachProfile(id), nil
}

func (f *fakeProfiles) Update(ctx context.Context, claims *services.SessionClaims, id int64, p models.CoachProfilePatch) (*models.CoachProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updateID, f.patch = id, p
	return &models.CoachProfile{ID: id, Name: p.Name, Tags: []string{}}, nil
}

func (f *fakeProfiles) UploadImage(ctx context.Context, claims *services.SessionClaims, id int64, file io.Reader) (*models.CoachProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(file)
	f.upload = string(b)
	return &models.CoachProfile{ID: id, ImageURL: "https://img.example.com/coach-7.jpg", Tags: []string{}}, nil
}

type fakeTracker struct {
	mu     sync.Mutex
	events []models.AnalyticsEvent
}

func (f *fakeTracker) Track(e models.AnalyticsEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

type fakeChatStatus services.ChatState

func (f fakeChatStatus) State() services.ChatState { return services.ChatState(f) }

type testEnv struct {
	h        *Handler
	verifier *fakeVerifier
	resolver *fakeResolver
	sessions *fakeSessions
	accounts *fakeAccounts
	handoff  *fakeHandoff
	profiles *fakeProfiles
	tracker  *fakeTracker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		verifier: &fakeVerifier{identity: &services.VerifiedIdentity{
			Contact:    models.Contact{Phone: "9999999999", CountryCode: "+91"},
			Name:       "Ann",
			VerifierID: "otpless-1",
		}},
		resolver: &fakeResolver{},
		sessions: &fakeSessions{},
		accounts: &fakeAccounts{},
		handoff:  &fakeHandoff{},
		profiles: &fakeProfiles{},
		tracker:  &fakeTracker{},
	}
	e.h = New(Deps{
		Verifier:  e.verifier,
		Resolver:  e.resolver,
		Sessions:  e.sessions,
		Accounts:  e.accounts,
		Handoff:   e.handoff,
		Profiles:  e.profiles,
		Tracker:   e.tracker,
		Hasher:    services.NewIPHasher("salt"),
		Cookie:    middleware.SessionCookie{Name: "ld_session", TTL: time.Hour},
		Log:       zap.NewNop(),
		Directory: services.DefaultCoachDirectory(),
	})
	e.h.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return e
}

func jsonRequest(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func asUser(r *http.Request, id string) *http.Request {
	c := &services.SessionClaims{Role: models.RoleUser}
	c.Subject = id
	return r.WithContext(middleware.WithSession(r.Context(), c, "tok"))
}

func asCoach(r *http.Request, id string) *http.Request {
	c := &services.SessionClaims{Role: models.RoleCoach, ChatUID: "coach-abc"}
	c.Subject = id
	return r.WithContext(middleware.WithSession(r.Context(), c, "tok"))
}
