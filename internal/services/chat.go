package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/config"
	"go.uber.org/zap"
)

// ChatUser is a user as the chat provider knows it.
type ChatUser struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// ChatProvider is the server side of the external chat service.
type ChatProvider interface {
	Login(ctx context.Context, uid string) (*ChatUser, error)
	CreateUser(ctx context.Context, uid, name string) (*ChatUser, error)
	SendMessage(ctx context.Context, senderUID, receiverUID, text string) error
}

// ChatState is the lifecycle of the provider client.
type ChatState int32

const (
	ChatUninitialized ChatState = iota
	ChatInitializing
	ChatReady
	ChatFailed
)

func (s ChatState) String() string {
	switch s {
	case ChatInitializing:
		return "initializing"
	case ChatReady:
		return "ready"
	case ChatFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

const chatErrUIDNotFound = "ERR_UID_NOT_FOUND"

// CometChatClient talks to the CometChat REST API. Calls return
// ErrChatNotReady until Init has succeeded.
type CometChatClient struct {
	baseURL string
	appID   string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	log     *zap.Logger
	state   atomic.Int32

	retryMin time.Duration
	retryMax time.Duration
}

var errChatMisconfigured = errors.New("cometchat: app id and api key are required")

func NewCometChatClient(cfg config.ChatConfig, log *zap.Logger) *CometChatClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" && cfg.AppID != "" {
		base = fmt.Sprintf("https://%s.api-%s.cometchat.io/v3", cfg.AppID, cfg.Region)
	}
	return &CometChatClient{
		baseURL: base,
		appID:   cfg.AppID,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  &http.Client{},
		log:     log,

		retryMin: time.Second,
		retryMax: time.Minute,
	}
}

func (c *CometChatClient) State() ChatState {
	return ChatState(c.state.Load())
}

// Init validates the configuration and probes the API once. It may be
// retried after a failure; concurrent calls while initializing are no-ops.
// Calls made while the client is Failed retry it as well.
func (c *CometChatClient) Init(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(ChatUninitialized), int32(ChatInitializing)) &&
		!c.state.CompareAndSwap(int32(ChatFailed), int32(ChatInitializing)) {
		return nil
	}

	if c.baseURL == "" || c.apiKey == "" {
		c.state.Store(int32(ChatFailed))
		return errChatMisconfigured
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.do(ctx, http.MethodGet, "/users?perPage=1", "", nil)
	if err != nil {
		c.state.Store(int32(ChatFailed))
		return fmt.Errorf("cometchat probe: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		c.state.Store(int32(ChatFailed))
		return fmt.Errorf("cometchat probe: status %d", resp.StatusCode)
	}

	c.state.Store(int32(ChatReady))
	c.log.Info("✅ CometChat client ready", zap.String("app_id", c.appID))
	return nil
}

// Run calls Init until the client is ready or ctx is done, backing off
// between attempts. A missing configuration is not retried.
func (c *CometChatClient) Run(ctx context.Context) error {
	backoff := c.retryMin
	for {
		err := c.Init(ctx)
		if c.State() == ChatReady {
			return nil
		}
		if errors.Is(err, errChatMisconfigured) {
			return err
		}
		if err != nil {
			c.log.Warn("⚠️  CometChat init failed, retrying", zap.Error(err), zap.Duration("backoff", backoff))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.retryMax {
			backoff = c.retryMax
		}
	}
}

type cometChatError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type cometChatUserEnvelope struct {
	Data ChatUser `json:"data"`
}

func (c *CometChatClient) do(ctx context.Context, method, path, onBehalfOf string, body interface{}) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if onBehalfOf != "" {
		req.Header.Set("onBehalfOf", onBehalfOf)
	}
	return c.client.Do(req)
}

func (c *CometChatClient) call(ctx context.Context, op, method, path, onBehalfOf string, body, out interface{}) error {
	if c.State() == ChatFailed {
		if err := c.Init(ctx); err != nil {
			c.log.Debug("cometchat re-init failed", zap.String("op", op), zap.Error(err))
		}
	}
	if c.State() != ChatReady {
		return newError(KindChatProvider, op, "", ErrChatNotReady)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.do(ctx, method, path, onBehalfOf, body)
	if err != nil {
		return upstreamFailure(KindChatProvider, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr cometChatError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if resp.StatusCode == http.StatusNotFound || apiErr.Error.Code == chatErrUIDNotFound {
			return newError(KindChatProvider, op, "", ErrChatUserNotFound)
		}
		return newError(KindChatProvider, op, "", fmt.Errorf("status %d: %s %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newError(KindChatProvider, op, "", fmt.Errorf("decode: %w", err))
	}
	return nil
}

// Login confirms the chat user exists. A missing user yields
// ErrChatUserNotFound so callers can create it.
func (c *CometChatClient) Login(ctx context.Context, uid string) (*ChatUser, error) {
	var env cometChatUserEnvelope
	if err := c.call(ctx, "chat.Login", http.MethodGet, "/users/"+url.PathEscape(uid), "", nil, &env); err != nil {
		return nil, err
	}
	if env.Data.UID == "" {
		env.Data.UID = uid
	}
	return &env.Data, nil
}

func (c *CometChatClient) CreateUser(ctx context.Context, uid, name string) (*ChatUser, error) {
	var env cometChatUserEnvelope
	body := map[string]string{"uid": uid, "name": name}
	if err := c.call(ctx, "chat.CreateUser", http.MethodPost, "/users", "", body, &env); err != nil {
		return nil, err
	}
	if env.Data.UID == "" {
		env.Data = ChatUser{UID: uid, Name: name}
	}
	return &env.Data, nil
}

// SendMessage sends a text message from senderUID to the user receiverUID.
func (c *CometChatClient) SendMessage(ctx context.Context, senderUID, receiverUID, text string) error {
	body := map[string]interface{}{
		"receiver":     receiverUID,
		"receiverType": "user",
		"category":     "message",
		"type":         "text",
		"data":         map[string]string{"text": text},
	}
	return c.call(ctx, "chat.SendMessage", http.MethodPost, "/messages", senderUID, body, nil)
}
