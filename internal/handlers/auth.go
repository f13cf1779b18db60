package handlers

import (
	"net/http"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/middleware"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/AnshRaj112/lovedoctor-backend/internal/services"
	"github.com/AnshRaj112/lovedoctor-backend/pkg/logger"
	"github.com/AnshRaj112/lovedoctor-backend/pkg/utils"
	"go.uber.org/zap"
)

type tokenRequest struct {
	Token string `json:"token"`
}

type authRequest struct {
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	CountryCode string `json:"countryCode"`
	Name        string `json:"name"`
}

type verifiedUser struct {
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	CountryCode string `json:"countryCode"`
	Name        string `json:"name"`
}

type accountView struct {
	ID          string      `json:"id"`
	Phone       string      `json:"phone"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	CountryCode string      `json:"countryCode"`
	Role        models.Role `json:"role"`
}

func viewOf(acct *models.Account) accountView {
	c := acct.Contact()
	return accountView{
		ID:          acct.ID(),
		Phone:       c.Phone,
		Email:       c.Email,
		Name:        acct.DisplayName(),
		CountryCode: c.CountryCode,
		Role:        acct.Role,
	}
}

type authResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	User      interface{} `json:"user"`
	Token     string      `json:"token,omitempty"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
}

// VerifyToken checks a one-time token with the verifier and returns the
// verified contact without touching storage.
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Token == "" {
		writeMessage(w, r, http.StatusBadRequest, "Token is required")
		return
	}

	identity, err := h.Verifier.Verify(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err, "Failed to verify token")
		return
	}

	logger.FromContext(r.Context()).Info("token verified",
		zap.String("phone", utils.MaskPhone(identity.Contact.Phone)),
		zap.String("email", utils.MaskEmail(identity.Contact.Email)),
	)
	writeJSON(w, r, http.StatusOK, authResponse{
		Success: true,
		User: verifiedUser{
			Phone:       identity.Contact.Phone,
			Email:       identity.Contact.Email,
			CountryCode: identity.Contact.CountryCode,
			Name:        identity.Name,
		},
	})
}

// ResolveAccount finds or creates the account of role for an already
// verified contact. Mounted behind the internal key.
func (h *Handler) ResolveAccount(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeMessage(w, r, http.StatusBadRequest, "Phone or email is required")
			return
		}

		acct, err := h.Resolver.Resolve(r.Context(), services.ResolveInput{
			Role:    role,
			Contact: models.Contact{Phone: req.Phone, Email: req.Email, CountryCode: req.CountryCode},
			Name:    req.Name,
		})
		if err != nil {
			writeError(w, r, err, "Failed to authenticate "+role.String())
			return
		}

		msg := "User authenticated"
		if role == models.RoleCoach {
			msg = "Coach authenticated"
		}
		writeJSON(w, r, http.StatusOK, authResponse{Success: true, Message: msg, User: viewOf(acct)})
	}
}

// SignIn verifies a one-time token, resolves the account of role and issues
// a session. The credential is set as a cookie and also returned for
// clients that send it as a bearer token.
func (h *Handler) SignIn(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if err := decodeJSON(w, r, &req); err != nil || req.Token == "" {
			writeMessage(w, r, http.StatusBadRequest, "Token is required")
			return
		}

		identity, err := h.Verifier.Verify(r.Context(), req.Token)
		if err != nil {
			writeError(w, r, err, "Failed to verify OTP")
			return
		}

		acct, err := h.Resolver.Resolve(r.Context(), services.ResolveInput{
			Role:       role,
			Contact:    identity.Contact,
			Name:       identity.Name,
			VerifierID: identity.VerifierID,
		})
		if err != nil {
			writeError(w, r, err, "Failed to verify OTP")
			return
		}

		token, claims, err := h.Sessions.Issue(r.Context(), acct)
		if err != nil {
			writeError(w, r, err, "Failed to start session")
			return
		}
		h.Cookie.Set(w, token)

		expires := claims.ExpiresAt.Time
		writeJSON(w, r, http.StatusOK, authResponse{
			Success:   true,
			Message:   "OTP verified successfully",
			User:      viewOf(acct),
			Token:     token,
			ExpiresAt: &expires,
		})
	}
}

// Logout revokes the current credential and clears the cookie. It succeeds
// without a session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionTokenFromContext(r.Context())
	if token == "" {
		token = middleware.TokenFromRequest(r, h.Cookie.Name)
	}
	if token != "" {
		if err := h.Sessions.Revoke(r.Context(), token); err != nil {
			logger.FromContext(r.Context()).Warn("revoking session failed", zap.Error(err))
		}
	}
	h.Cookie.Clear(w)
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"success": true, "message": "Logged out"})
}

type sessionView struct {
	ID        string      `json:"id"`
	Role      models.Role `json:"role"`
	Name      string      `json:"name"`
	ChatUID   string      `json:"chatUid,omitempty"`
	Enriched  bool        `json:"enriched"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Session describes the current credential.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	claims := middleware.SessionFromContext(r.Context())
	if claims == nil {
		writeMessage(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}
	view := sessionView{
		ID:       claims.AccountID(),
		Role:     claims.Role,
		Name:     claims.Name,
		ChatUID:  claims.ChatUID,
		Enriched: claims.Enriched(),
	}
	if claims.ExpiresAt != nil {
		view.ExpiresAt = claims.ExpiresAt.Time
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"success": true, "session": view})
}
