package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/config"
	"github.com/AnshRaj112/lovedoctor-backend/internal/metrics"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// SessionKeyPrefix is the Redis key prefix for sessions
	SessionKeyPrefix = "session:"
	// AccountSessionKeyPrefix is the Redis key prefix for account->sessions sets
	AccountSessionKeyPrefix = "account_sessions:"
)

// SessionClaims is the signed session credential. Role is set at issuance
// and never re-derived from storage.
type SessionClaims struct {
	Role         models.Role `json:"role"`
	Phone        string      `json:"phone,omitempty"`
	Email        string      `json:"email,omitempty"`
	Name         string      `json:"name,omitempty"`
	CountryCode  string      `json:"country_code,omitempty"`
	ChatUID      string      `json:"chat_uid,omitempty"`
	ChatMemberID string      `json:"chat_member_id,omitempty"`
	jwt.RegisteredClaims
}

// AccountID is the internal id of the session owner.
func (c *SessionClaims) AccountID() string {
	return c.Subject
}

// Enriched reports whether the credential carries a chat identity.
func (c *SessionClaims) Enriched() bool {
	return c.ChatUID != ""
}

func (c *SessionClaims) owner() string {
	return string(c.Role) + ":" + c.Subject
}

// SessionState is the result of reading a credential. Token differs from the
// presented one when Refreshed is set, and must be sent back to the client.
type SessionState struct {
	Claims    *SessionClaims
	Token     string
	Refreshed bool
}

// SessionRegistry tracks live session ids so credentials can be revoked
// before they expire.
type SessionRegistry interface {
	Register(ctx context.Context, jti, owner string, ttl time.Duration) error
	Exists(ctx context.Context, jti string) (bool, error)
	Extend(ctx context.Context, jti, owner string, ttl time.Duration) error
	Remove(ctx context.Context, jti string) error
	RemoveAll(ctx context.Context, owner string) error
}

// AccountReader is the read-only view session enrichment needs.
type AccountReader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetCoach(ctx context.Context, id int64) (*models.Coach, error)
}

type SessionManager struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	registry SessionRegistry
	accounts AccountReader
	log      *zap.Logger
	now      func() time.Time
}

func NewSessionManager(cfg config.SessionConfig, registry SessionRegistry, accounts AccountReader, log *zap.Logger) *SessionManager {
	return &SessionManager{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		ttl:      cfg.TTL,
		registry: registry,
		accounts: accounts,
		log:      log,
		now:      time.Now,
	}
}

func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a credential for a resolved account. The credential starts
// Enriched when the account already has a chat identity, Bare otherwise.
func (m *SessionManager) Issue(ctx context.Context, acct *models.Account) (string, *SessionClaims, error) {
	const op = "session.Issue"

	now := m.now()
	contact := acct.Contact()
	chatUID, memberID := acct.ChatIdentity()
	claims := &SessionClaims{
		Role:         acct.Role,
		Phone:        contact.Phone,
		Email:        contact.Email,
		Name:         acct.DisplayName(),
		CountryCode:  contact.CountryCode,
		ChatUID:      chatUID,
		ChatMemberID: memberID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   acct.ID(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	if err := m.registry.Register(ctx, claims.ID, claims.owner(), m.ttl); err != nil {
		return "", nil, persistenceFailure(op, err)
	}
	token, err := m.sign(claims)
	if err != nil {
		return "", nil, newError(KindInternal, op, "", err)
	}
	return token, claims, nil
}

func (m *SessionManager) sign(c *SessionClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
}

func (m *SessionManager) parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if !claims.Role.Valid() || claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("malformed session claims")
	}
	return claims, nil
}

// Read validates a credential and runs the Bare -> Enriched transition when
// the chat identity is missing. Enrichment never mutates the account and a
// failed lookup leaves the credential Bare without surfacing an error. The
// credential is renewed once less than half of its lifetime remains.
func (m *SessionManager) Read(ctx context.Context, token string) (*SessionState, error) {
	const op = "session.Read"

	if token == "" {
		return nil, newError(KindUnauthorized, op, "Unauthorized", nil)
	}
	claims, err := m.parse(token)
	if err != nil {
		return nil, newError(KindUnauthorized, op, "Unauthorized", err)
	}

	live, err := m.registry.Exists(ctx, claims.ID)
	if err != nil {
		return nil, persistenceFailure(op, err)
	}
	if !live {
		return nil, newError(KindUnauthorized, op, "Unauthorized", errors.New("session revoked"))
	}

	state := &SessionState{Claims: claims, Token: token}
	if !claims.Enriched() && m.enrich(ctx, claims) {
		state.Refreshed = true
	}

	now := m.now()
	if claims.ExpiresAt.Time.Sub(now) < m.ttl/2 {
		if err := m.registry.Extend(ctx, claims.ID, claims.owner(), m.ttl); err != nil {
			m.log.Warn("session renewal failed", zap.String("jti", claims.ID), zap.Error(err))
		} else {
			claims.IssuedAt = jwt.NewNumericDate(now)
			claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
			state.Refreshed = true
		}
	}

	if state.Refreshed {
		signed, err := m.sign(claims)
		if err != nil {
			return nil, newError(KindInternal, op, "", err)
		}
		state.Token = signed
	}
	return state, nil
}

func (m *SessionManager) enrich(ctx context.Context, c *SessionClaims) bool {
	uid, memberID, err := m.chatIdentity(ctx, c.Role, c.Subject)
	switch {
	case err != nil:
		metrics.SessionEnrichments.WithLabelValues("lookup_failed").Inc()
		m.log.Debug("session enrichment lookup failed", zap.String("role", string(c.Role)), zap.String("account_id", c.Subject), zap.Error(err))
		return false
	case uid == "":
		metrics.SessionEnrichments.WithLabelValues("absent").Inc()
		return false
	}
	metrics.SessionEnrichments.WithLabelValues("enriched").Inc()
	c.ChatUID = uid
	c.ChatMemberID = memberID
	return true
}

func (m *SessionManager) chatIdentity(ctx context.Context, role models.Role, id string) (string, string, error) {
	if role == models.RoleCoach {
		coachID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return "", "", fmt.Errorf("bad coach id %q: %w", id, err)
		}
		c, err := m.accounts.GetCoach(ctx, coachID)
		if err != nil {
			return "", "", err
		}
		return c.ChatUID, c.ChatMemberID, nil
	}
	u, err := m.accounts.GetUser(ctx, id)
	if err != nil {
		return "", "", err
	}
	return u.ChatUserID, u.ChatMemberID, nil
}

// Revoke destroys the session behind token. Invalid tokens are ignored.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return nil
	}
	if err := m.registry.Remove(ctx, claims.ID); err != nil {
		return persistenceFailure("session.Revoke", err)
	}
	return nil
}

// RevokeAll destroys every session of an account.
func (m *SessionManager) RevokeAll(ctx context.Context, role models.Role, id string) error {
	if err := m.registry.RemoveAll(ctx, string(role)+":"+id); err != nil {
		return persistenceFailure("session.RevokeAll", err)
	}
	return nil
}

// RedisSessionRegistry keeps session:<jti> -> owner and an
// account_sessions:<role>:<id> set per account, both expiring with the session.
type RedisSessionRegistry struct {
	client *redis.Client
}

func NewRedisSessionRegistry(client *redis.Client) *RedisSessionRegistry {
	return &RedisSessionRegistry{client: client}
}

func (r *RedisSessionRegistry) Register(ctx context.Context, jti, owner string, ttl time.Duration) error {
	accountKey := AccountSessionKeyPrefix + owner
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, SessionKeyPrefix+jti, owner, ttl)
	pipe.SAdd(ctx, accountKey, jti)
	pipe.Expire(ctx, accountKey, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisSessionRegistry) Exists(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, SessionKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisSessionRegistry) Extend(ctx context.Context, jti, owner string, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.Expire(ctx, SessionKeyPrefix+jti, ttl)
	pipe.Expire(ctx, AccountSessionKeyPrefix+owner, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisSessionRegistry) Remove(ctx context.Context, jti string) error {
	sessionKey := SessionKeyPrefix + jti
	owner, err := r.client.Get(ctx, sessionKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if owner != "" {
		r.client.SRem(ctx, AccountSessionKeyPrefix+owner, jti)
	}
	return r.client.Del(ctx, sessionKey).Err()
}

func (r *RedisSessionRegistry) RemoveAll(ctx context.Context, owner string) error {
	accountKey := AccountSessionKeyPrefix + owner
	jtis, err := r.client.SMembers(ctx, accountKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := make([]string, 0, len(jtis)+1)
	for _, jti := range jtis {
		keys = append(keys, SessionKeyPrefix+jti)
	}
	keys = append(keys, accountKey)
	return r.client.Del(ctx, keys...).Err()
}
