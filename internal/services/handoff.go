package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/metrics"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/AnshRaj112/lovedoctor-backend/pkg/utils"
	"go.uber.org/zap"
)

// IntakeStore persists intake answers and the lazily created chat identity.
type IntakeStore interface {
	SaveIntake(ctx context.Context, id string, in models.Intake) (*models.User, error)
	SetUserChatIdentity(ctx context.Context, id, chatUID, memberID string) error
}

// HandoffResult tells the client how the handoff ended. CloseModal is only
// set once the intake is saved and the chat identity exists.
type HandoffResult struct {
	CloseModal  bool   `json:"closeModal"`
	ChatUID     string `json:"chatUid"`
	CoachUID    string `json:"coachUid"`
	CoachName   string `json:"coachName"`
	MessageSent bool   `json:"messageSent"`
}

type Handoff struct {
	store     IntakeStore
	chat      ChatProvider
	directory *CoachDirectory
	tracker   EventTracker
	leads     LeadPublisher
	timeout   time.Duration
	log       *zap.Logger
	now       func() time.Time
}

func NewHandoff(store IntakeStore, chat ChatProvider, directory *CoachDirectory, tracker EventTracker, leads LeadPublisher, timeout time.Duration, log *zap.Logger) *Handoff {
	return &Handoff{
		store:     store,
		chat:      chat,
		directory: directory,
		tracker:   tracker,
		leads:     leads,
		timeout:   timeout,
		log:       log,
		now:       time.Now,
	}
}

// ValidateIntake checks the intake form. Errors are keyed by form field.
func ValidateIntake(form models.IntakeForm) (models.Intake, utils.FieldErrors) {
	form = form.Trimmed()
	errs := utils.FieldErrors{}
	if form.Situation == "" {
		errs.Add("situation", "Please describe your situation")
	}
	if form.Name == "" {
		errs.Add("name", "Please enter your name")
	}
	if form.AgeRange == "" {
		errs.Add("ageRange", "Please select your age range")
	}
	if form.Gender == "" {
		errs.Add("gender", "Please select your gender")
	}

	in := models.Intake{Name: form.Name, Situation: form.Situation}
	if form.AgeRange != "" {
		a, ok := models.ParseAgeRange(form.AgeRange)
		if !ok {
			errs.Add("ageRange", "Please select a valid age range")
		}
		in.AgeRange = a
	}
	if form.Gender != "" {
		g, ok := models.ParseGender(form.Gender)
		if !ok {
			errs.Add("gender", "Please select a valid gender")
		}
		in.Gender = g
	}
	return in, errs
}

// FirstMessage renders the opening message sent to the coach.
func FirstMessage(in models.Intake) string {
	return fmt.Sprintf("Hi! I'm %s\n\nAge Range: %s\nGender: %s\n\nMy situation: %s",
		in.Name, in.AgeRange, in.Gender.FormValue(), in.Situation)
}

// SubmitIntake validates and stores the intake form without touching chat.
func (h *Handoff) SubmitIntake(ctx context.Context, userID string, form models.IntakeForm) (*models.User, error) {
	const op = "handoff.SubmitIntake"

	in, errs := ValidateIntake(form)
	if !errs.Empty() {
		return nil, validationFailed(op, errs)
	}
	u, err := h.store.SaveIntake(ctx, userID, in)
	if err != nil {
		return nil, persistenceFailure(op, err)
	}
	return u, nil
}

// Run saves the intake, makes sure the user has a chat identity, sends the
// opening message to the chosen coach and records the lead. Only the first
// two steps can fail the handoff. The work continues if the client goes away.
func (h *Handoff) Run(ctx context.Context, claims *SessionClaims, form models.IntakeForm) (*HandoffResult, error) {
	const op = "handoff.Run"

	if claims == nil || claims.Role != models.RoleUser {
		return nil, newError(KindForbidden, op, "Only users can start a chat", nil)
	}

	in, errs := ValidateIntake(form)
	coach, ok := h.directory.Lookup(form.CoachID)
	if !ok {
		errs.Add("coachId", "Please select a coach")
	}
	if !errs.Empty() {
		metrics.HandoffSteps.WithLabelValues("validate", "failed").Inc()
		return nil, validationFailed(op, errs)
	}

	ctx = context.WithoutCancel(ctx)
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	userID := claims.AccountID()
	log := h.log.With(zap.String("user_id", userID), zap.String("coach_uid", coach.UID))

	if _, err := h.store.SaveIntake(ctx, userID, in); err != nil {
		metrics.HandoffSteps.WithLabelValues("save_intake", "failed").Inc()
		log.Error("saving intake failed", zap.Error(err))
		return nil, persistenceFailure(op, err)
	}
	metrics.HandoffSteps.WithLabelValues("save_intake", "ok").Inc()

	chatUser, err := h.ensureChatUser(ctx, userID, in.Name)
	if err != nil {
		metrics.HandoffSteps.WithLabelValues("chat_identity", "failed").Inc()
		log.Error("establishing chat identity failed", zap.Error(err))
		if KindOf(err) == KindInternal {
			return nil, newError(KindChatProvider, op, "", err)
		}
		return nil, err
	}
	metrics.HandoffSteps.WithLabelValues("chat_identity", "ok").Inc()

	if claims.ChatUID == "" {
		if err := h.store.SetUserChatIdentity(ctx, userID, chatUser.UID, chatUser.UID); err != nil {
			log.Warn("storing chat identity failed", zap.Error(err))
		}
	}

	result := &HandoffResult{
		CloseModal: true,
		ChatUID:    chatUser.UID,
		CoachUID:   coach.UID,
		CoachName:  coach.Name,
	}
	if err := h.chat.SendMessage(ctx, chatUser.UID, coach.UID, FirstMessage(in)); err != nil {
		metrics.HandoffSteps.WithLabelValues("first_message", "failed").Inc()
		log.Warn("sending first message failed", zap.Error(err))
	} else {
		metrics.HandoffSteps.WithLabelValues("first_message", "ok").Inc()
		result.MessageSent = true
	}

	now := h.now().UTC()
	h.tracker.Track(models.AnalyticsEvent{
		DistinctID: userID,
		Name:       models.EventLeadCaptured,
		Source:     "server",
		Properties: map[string]interface{}{
			"coachId":     coach.ID,
			"coachName":   coach.Name,
			"ageRange":    string(in.AgeRange),
			"gender":      in.Gender.FormValue(),
			"messageSent": result.MessageSent,
		},
		CreatedAt: now,
	})
	h.leads.PublishAsync(models.LeadEvent{
		Type:             models.LeadEventNew,
		CoachUID:         coach.UID,
		UserID:           userID,
		ChatUID:          chatUser.UID,
		Name:             in.Name,
		AgeRange:         string(in.AgeRange),
		Gender:           in.Gender.FormValue(),
		SituationPreview: utils.Truncate(in.Situation, 140),
		MessageSent:      result.MessageSent,
		Timestamp:        now,
	})

	log.Info("chat handoff complete", zap.Bool("message_sent", result.MessageSent))
	return result, nil
}

// ensureChatUser logs the user in, creating the chat user and retrying once
// when the provider does not know it.
func (h *Handoff) ensureChatUser(ctx context.Context, uid, name string) (*ChatUser, error) {
	u, err := h.chat.Login(ctx, uid)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrChatUserNotFound) {
		return nil, err
	}

	if _, err := h.chat.CreateUser(ctx, uid, name); err != nil {
		return nil, err
	}
	return h.chat.Login(ctx, uid)
}
