package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/middleware"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/AnshRaj112/lovedoctor-backend/pkg/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	leadWriteWait  = 10 * time.Second
	leadPongWait   = 90 * time.Second
	leadPingPeriod = 30 * time.Second
	leadReadLimit  = 4 * 1024
)

// wsConn applies a write deadline to every message.
type wsConn struct {
	*websocket.Conn
}

func (c wsConn) WriteJSON(v interface{}) error {
	_ = c.SetWriteDeadline(time.Now().Add(leadWriteWait))
	return c.Conn.WriteJSON(v)
}

func (h *Handler) upgrader() *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(h.AllowedOrigins))
	for _, o := range h.AllowedOrigins {
		allowed[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			_, ok := allowed[strings.ToLower(origin)]
			return ok
		},
	}
}

// LeadFeed streams new leads to the signed-in coach over a websocket.
// Messages from the client are read only to keep the connection alive.
func (h *Handler) LeadFeed(w http.ResponseWriter, r *http.Request) {
	claims := middleware.SessionFromContext(r.Context())
	if claims == nil || claims.Role != models.RoleCoach {
		writeMessage(w, r, http.StatusForbidden, "Forbidden")
		return
	}
	if h.Leads == nil {
		writeMessage(w, r, http.StatusServiceUnavailable, "Lead feed is not available")
		return
	}

	coachUID := claims.ChatUID
	if coachUID == "" {
		acct, err := h.Accounts.Current(r.Context(), claims)
		if err != nil {
			writeError(w, r, err, "Server error")
			return
		}
		coachUID, _ = acct.ChatIdentity()
	}
	if coachUID == "" {
		writeMessage(w, r, http.StatusConflict, "Coach has no chat identity")
		return
	}

	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	log := logger.FromContext(r.Context()).With(zap.String("coach_uid", coachUID))
	unsubscribe := h.Leads.Subscribe(coachUID, wsConn{conn})
	defer unsubscribe()
	log.Info("lead feed connected")

	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }
	defer stop()

	go func() {
		ticker := time.NewTicker(leadPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(leadWriteWait)); err != nil {
					stop()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(leadReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(leadPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(leadPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Info("lead feed disconnected", zap.Error(err))
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(leadPongWait))
	}
}
