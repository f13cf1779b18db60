package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/AnshRaj112/lovedoctor-backend/internal/services"
	"github.com/AnshRaj112/lovedoctor-backend/pkg/logger"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

const maxJSONBody = 64 << 10

var errEmptyBody = errors.New("empty request body")

type errorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Message: msg})
}

// writeError maps a service error onto a status code and a client-safe
// message. fallback is used for failures whose cause must not be shown.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	log := logger.FromContext(r.Context())

	var se *services.Error
	if !errors.As(err, &se) {
		log.Error("unhandled error", zap.Error(err))
		writeMessage(w, r, http.StatusInternalServerError, fallback)
		return
	}

	switch se.Kind {
	case services.KindInvalidInput:
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Message: se.Msg, Errors: se.Fields})
	case services.KindUnauthorized:
		writeMessage(w, r, http.StatusUnauthorized, orDefault(se.Msg, "Unauthorized"))
	case services.KindForbidden:
		writeMessage(w, r, http.StatusForbidden, orDefault(se.Msg, "Forbidden"))
	case services.KindNotFound:
		writeMessage(w, r, http.StatusNotFound, orDefault(se.Msg, "Not found"))
	case services.KindUpstream:
		log.Warn("upstream failure", zap.String("op", se.Op), zap.Error(se))
		writeMessage(w, r, http.StatusInternalServerError, orDefault(se.Msg, "Something went wrong, please try again"))
	case services.KindTimeout:
		log.Warn("upstream timeout", zap.String("op", se.Op), zap.Error(se))
		writeMessage(w, r, http.StatusGatewayTimeout, "The request timed out, please try again")
	case services.KindChatProvider:
		log.Error("chat provider failure", zap.String("op", se.Op), zap.Error(se))
		writeMessage(w, r, http.StatusBadGateway, "Could not connect to chat, please try again")
	default:
		log.Error("request failed", zap.String("op", se.Op), zap.String("kind", se.Kind.String()), zap.Error(se))
		writeMessage(w, r, http.StatusInternalServerError, fallback)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}
