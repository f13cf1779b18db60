package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/database"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
)

// memStore is an in-memory AccountStore enforcing the same uniqueness rules
// as the Postgres schema.
type memStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	coaches   map[int64]*models.Coach
	nextCoach int64
	calls     []string

	// createHook runs before a create is applied; tests use it to inject a
	// concurrent winner.
	createHook func()
	failSave   error
	failChatID error
	failGet    error
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*models.User{}, coaches: map[int64]*models.Coach{}}
}

func (s *memStore) record(call string) {
	s.calls = append(s.calls, call)
}

func userField(u *models.User, f models.LookupField) string {
	switch f {
	case models.LookupPhone:
		return u.Phone
	case models.LookupEmail:
		return u.Email
	default:
		return u.VerifierID
	}
}

func coachField(c *models.Coach, f models.LookupField) string {
	switch f {
	case models.LookupPhone:
		return c.Phone
	case models.LookupEmail:
		return c.Email
	default:
		return c.VerifierID
	}
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyCoach(c *models.Coach) *models.Coach {
	cp := *c
	return &cp
}

func (s *memStore) FindUserBy(ctx context.Context, field models.LookupField, value string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindUserBy:" + string(field))
	for _, u := range s.users {
		if value != "" && userField(u, field) == value {
			return copyUser(u), nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("GetUser")
	if s.failGet != nil {
		return nil, s.failGet
	}
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *memStore) userConflict(id string, phone, email, verifier string) error {
	for _, u := range s.users {
		if u.ID == id {
			continue
		}
		if (phone != "" && u.Phone == phone) || (email != "" && u.Email == email) || (verifier != "" && u.VerifierID == verifier) {
			return fmt.Errorf("%w: users", database.ErrConflict)
		}
	}
	return nil
}

func (s *memStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	if s.createHook != nil {
		hook := s.createHook
		s.createHook = nil
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateUser")
	if err := s.userConflict(u.ID, u.Phone, u.Email, u.VerifierID); err != nil {
		return nil, err
	}
	c := copyUser(u)
	now := time.Now()
	c.CreatedAt, c.UpdatedAt, c.LastLoginAt = now, now, &now
	s.users[c.ID] = c
	return copyUser(c), nil
}

func (s *memStore) TouchUser(ctx context.Context, id string, b models.Backfill) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("TouchUser")
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if err := s.userConflict(id, b.Phone, b.Email, b.VerifierID); err != nil {
		return nil, err
	}
	setIf(&u.Phone, b.Phone)
	setIf(&u.Email, b.Email)
	setIf(&u.CountryCode, b.CountryCode)
	setIf(&u.Name, b.Name)
	setIf(&u.VerifierID, b.VerifierID)
	now := time.Now()
	u.LastLoginAt = &now
	return copyUser(u), nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (s *memStore) SaveIntake(ctx context.Context, id string, in models.Intake) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("SaveIntake")
	if s.failSave != nil {
		return nil, s.failSave
	}
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	u.Name = in.Name
	u.AgeRange = string(in.AgeRange)
	u.Gender = in.Gender
	u.CurrentSituation = in.Situation
	u.Situations = append(u.Situations, in.Situation)
	return copyUser(u), nil
}

func (s *memStore) SetUserChatIdentity(ctx context.Context, id, chatUID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("SetUserChatIdentity")
	if s.failChatID != nil {
		return s.failChatID
	}
	u, ok := s.users[id]
	if !ok {
		return database.ErrNotFound
	}
	if u.ChatUserID == "" {
		u.ChatUserID = chatUID
	}
	if u.ChatMemberID == "" {
		u.ChatMemberID = memberID
	}
	return nil
}

func (s *memStore) FindCoachBy(ctx context.Context, field models.LookupField, value string) (*models.Coach, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindCoachBy:" + string(field))
	for _, c := range s.coaches {
		if value != "" && coachField(c, field) == value {
			return copyCoach(c), nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memStore) GetCoach(ctx context.Context, id int64) (*models.Coach, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("GetCoach")
	if s.failGet != nil {
		return nil, s.failGet
	}
	c, ok := s.coaches[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return copyCoach(c), nil
}

func (s *memStore) coachConflict(id int64, phone, email, verifier string) error {
	for _, c := range s.coaches {
		if c.ID == id {
			continue
		}
		if (phone != "" && c.Phone == phone) || (email != "" && c.Email == email) || (verifier != "" && c.VerifierID == verifier) {
			return fmt.Errorf("%w: coaches", database.ErrConflict)
		}
	}
	return nil
}

func (s *memStore) CreateCoach(ctx context.Context, c *models.Coach) (*models.Coach, error) {
	if s.createHook != nil {
		hook := s.createHook
		s.createHook = nil
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateCoach")
	if err := s.coachConflict(0, c.Phone, c.Email, c.VerifierID); err != nil {
		return nil, err
	}
	s.nextCoach++
	cp := copyCoach(c)
	cp.ID = s.nextCoach
	s.coaches[cp.ID] = cp
	return copyCoach(cp), nil
}

func (s *memStore) TouchCoach(ctx context.Context, id int64, b models.Backfill) (*models.Coach, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("TouchCoach")
	c, ok := s.coaches[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if err := s.coachConflict(id, b.Phone, b.Email, b.VerifierID); err != nil {
		return nil, err
	}
	setIf(&c.Phone, b.Phone)
	setIf(&c.Email, b.Email)
	setIf(&c.CountryCode, b.CountryCode)
	setIf(&c.Name, b.Name)
	setIf(&c.VerifierID, b.VerifierID)
	return copyCoach(c), nil
}

func (s *memStore) UpdateCoachProfile(ctx context.Context, id int64, p models.CoachProfilePatch) (*models.Coach, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("UpdateCoachProfile")
	c, ok := s.coaches[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	setIf(&c.Name, p.Name)
	setIf(&c.Title, p.Title)
	setIf(&c.Specialty, p.Specialty)
	if p.Bio != nil {
		c.Bio = *p.Bio
	}
	if p.ImageURL != nil {
		c.ImageURL = *p.ImageURL
	}
	if p.Tags != nil {
		c.Tags = *p.Tags
	}
	return copyCoach(c), nil
}

func (s *memStore) userCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// memRegistry is an in-memory SessionRegistry.
type memRegistry struct {
	mu       sync.Mutex
	sessions map[string]string
	extended int
}

func newMemRegistry() *memRegistry {
	return &memRegistry{sessions: map[string]string{}}
}

func (r *memRegistry) Register(ctx context.Context, jti, owner string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[jti] = owner
	return nil
}

func (r *memRegistry) Exists(ctx context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[jti]
	return ok, nil
}

func (r *memRegistry) Extend(ctx context.Context, jti, owner string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extended++
	return nil
}

func (r *memRegistry) Remove(ctx context.Context, jti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, jti)
	return nil
}

func (r *memRegistry) RemoveAll(ctx context.Context, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for jti, o := range r.sessions {
		if o == owner {
			delete(r.sessions, jti)
		}
	}
	return nil
}

// fakeChat records provider calls in order.
type fakeChat struct {
	mu        sync.Mutex
	known     map[string]bool
	calls     []string
	loginErr  error
	createErr error
	sendErr   error
	sent      []string
}

func newFakeChat() *fakeChat {
	return &fakeChat{known: map[string]bool{}}
}

func (c *fakeChat) Login(ctx context.Context, uid string) (*ChatUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "login")
	if c.loginErr != nil {
		return nil, c.loginErr
	}
	if !c.known[uid] {
		return nil, newError(KindChatProvider, "chat.Login", "", ErrChatUserNotFound)
	}
	return &ChatUser{UID: uid}, nil
}

func (c *fakeChat) CreateUser(ctx context.Context, uid, name string) (*ChatUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "create")
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.known[uid] = true
	return &ChatUser{UID: uid, Name: name}, nil
}

func (c *fakeChat) SendMessage(ctx context.Context, senderUID, receiverUID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "send")
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, text)
	return nil
}

type fakeTracker struct {
	mu     sync.Mutex
	events []models.AnalyticsEvent
}

func (t *fakeTracker) Track(e models.AnalyticsEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

type fakeLeads struct {
	mu     sync.Mutex
	events []models.LeadEvent
}

func (l *fakeLeads) PublishAsync(ev models.LeadEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

type fakeConn struct {
	mu      sync.Mutex
	written []interface{}
	closed  bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.written)
}
