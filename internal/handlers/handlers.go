package handlers

import (
	"context"
	"io"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/middleware"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/AnshRaj112/lovedoctor-backend/internal/services"
	"go.uber.org/zap"
)

type AccountResolver interface {
	Resolve(ctx context.Context, in services.ResolveInput) (*models.Account, error)
}

type SessionIssuer interface {
	Issue(ctx context.Context, acct *models.Account) (string, *services.SessionClaims, error)
	Revoke(ctx context.Context, token string) error
}

type AccountFinder interface {
	Current(ctx context.Context, claims *services.SessionClaims) (*models.Account, error)
}

type IntakeHandoff interface {
	Run(ctx context.Context, claims *services.SessionClaims, form models.IntakeForm) (*services.HandoffResult, error)
	SubmitIntake(ctx context.Context, userID string, form models.IntakeForm) (*models.User, error)
}

type CoachProfiles interface {
	Get(ctx context.Context, id int64) (*models.CoachProfile, error)
	Update(ctx context.Context, claims *services.SessionClaims, id int64, p models.CoachProfilePatch) (*models.CoachProfile, error)
	UploadImage(ctx context.Context, claims *services.SessionClaims, id int64, file io.Reader) (*models.CoachProfile, error)
}

type LeadSubscriber interface {
	Subscribe(coachUID string, conn services.LeadConn) func()
}

type ChatStatus interface {
	State() services.ChatState
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps wires the handlers to their services. Tracker, Leads, Chat and
// HealthChecks are optional. AllowedOrigins limits websocket upgrades; empty
// allows any origin.
type Deps struct {
	Verifier       services.TokenVerifier
	Resolver       AccountResolver
	Sessions       SessionIssuer
	Accounts       AccountFinder
	Handoff        IntakeHandoff
	Profiles       CoachProfiles
	Directory      *services.CoachDirectory
	Tracker        services.EventTracker
	Hasher         *services.IPHasher
	Leads          LeadSubscriber
	Chat           ChatStatus
	HealthChecks   map[string]HealthCheck
	Cookie         middleware.SessionCookie
	AllowedOrigins []string
	TrustProxy     bool
	Log            *zap.Logger
}

type Handler struct {
	Deps
	now func() time.Time
}

func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Tracker == nil {
		d.Tracker = services.NewLogTracker(d.Log)
	}
	if d.Hasher == nil {
		d.Hasher = services.NewIPHasher("")
	}
	if d.Directory == nil {
		d.Directory = services.DefaultCoachDirectory()
	}
	return &Handler{Deps: d, now: time.Now}
}
