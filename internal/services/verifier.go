package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/config"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/AnshRaj112/lovedoctor-backend/pkg/utils"
	"go.uber.org/zap"
)

// VerifiedIdentity is what the external verifier vouches for. Every field
// is optional and is validated again before it is persisted.
type VerifiedIdentity struct {
	Contact    models.Contact
	Name       string
	VerifierID string
}

// TokenVerifier exchanges a one-time token for a verified identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*VerifiedIdentity, error)
}

// OTPlessVerifier validates tokens against the OTPless user-auth API.
type OTPlessVerifier struct {
	url          string
	clientID     string
	clientSecret string
	timeout      time.Duration
	client       *http.Client
	log          *zap.Logger
}

func NewOTPlessVerifier(cfg config.OTPlessConfig, log *zap.Logger) *OTPlessVerifier {
	return &OTPlessVerifier{
		url:          cfg.URL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		timeout:      cfg.Timeout,
		client:       &http.Client{},
		log:          log,
	}
}

type otplessIdentity struct {
	IdentityType  string `json:"identityType"`
	IdentityValue string `json:"identityValue"`
	CountryCode   string `json:"countryCode"`
	Name          string `json:"name"`
}

type otplessResponse struct {
	Status     string            `json:"status"`
	UserID     string            `json:"userId"`
	Identities []otplessIdentity `json:"identities"`
}

func (v *OTPlessVerifier) Verify(ctx context.Context, token string) (*VerifiedIdentity, error) {
	const op = "verifier.Verify"

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, invalidInput(op, "Token is required")
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, newError(KindInternal, op, "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindInternal, op, "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("clientId", v.clientID)
	req.Header.Set("clientSecret", v.clientSecret)

	resp, err := v.client.Do(req)
	if err != nil {
		v.log.Warn("otpless request failed", zap.Error(err))
		return nil, upstreamFailure(KindUpstream, op, fmt.Errorf("%w: %w", ErrVerifierUnavailable, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		v.log.Warn("otpless returned server error", zap.Int("status", resp.StatusCode))
		return nil, newError(KindUpstream, op, "", fmt.Errorf("%w: status %d", ErrVerifierUnavailable, resp.StatusCode))
	case resp.StatusCode >= 400:
		v.log.Info("otpless rejected token", zap.Int("status", resp.StatusCode))
		return nil, newError(KindUnauthorized, op, "Invalid OTP token", ErrInvalidToken)
	}

	var out otplessResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, upstreamFailure(KindUpstream, op, fmt.Errorf("%w: decode: %w", ErrVerifierUnavailable, err))
	}
	if !strings.EqualFold(out.Status, "SUCCESS") || len(out.Identities) == 0 {
		return nil, newError(KindUnauthorized, op, "Invalid OTP token", ErrInvalidToken)
	}

	identity := &VerifiedIdentity{VerifierID: strings.TrimSpace(out.UserID)}
	for _, id := range out.Identities {
		value := strings.TrimSpace(id.IdentityValue)
		switch strings.ToUpper(id.IdentityType) {
		case "MOBILE":
			if identity.Contact.Phone == "" {
				identity.Contact.Phone = utils.NormalizePhone(value)
				identity.Contact.CountryCode = strings.TrimSpace(id.CountryCode)
			}
		case "EMAIL":
			if identity.Contact.Email == "" {
				identity.Contact.Email = utils.NormalizeEmail(value)
			}
		}
		if identity.Name == "" {
			identity.Name = strings.TrimSpace(id.Name)
		}
	}
	if identity.Contact.Phone != "" && identity.Contact.CountryCode == "" {
		identity.Contact.CountryCode = models.DefaultCountryCode
	}

	if identity.Contact.IsEmpty() {
		return nil, newError(KindUnauthorized, op, "Invalid OTP token", fmt.Errorf("%w: no phone or email", ErrInvalidToken))
	}
	return identity, nil
}
