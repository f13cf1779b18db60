package handlers

import (
	"encoding/json"
	"net/http"
	"unicode/utf8"

	"github.com/AnshRaj112/lovedoctor-backend/pkg/logger"
	"go.uber.org/zap"
)

type messageLog struct {
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Message   string          `json:"message"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// SendMessage logs a chat message reported by the client. Nothing is stored.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageLog
	if err := decodeJSON(w, r, &req); err != nil {
		logger.FromContext(r.Context()).Warn("bad message log body", zap.Error(err))
		writeMessage(w, r, http.StatusInternalServerError, "Failed to log message")
		return
	}

	logger.FromContext(r.Context()).Info("chat message",
		zap.String("sender", req.Sender),
		zap.String("recipient", req.Recipient),
		zap.Int("length", utf8.RuneCountInString(req.Message)),
		zap.ByteString("timestamp", req.Timestamp),
	)
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"success": true, "message": "Chat message logged successfully"})
}
