package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	identitymw "medgate/internal/identity/middleware"
	"medgate/internal/identity/models"
	ratelimitmw "medgate/internal/ratelimit/middleware"
	rlmodels "medgate/internal/ratelimit/models"
	dErrors "medgate/pkg/domain-errors"
	audit "medgate/pkg/platform/audit"
	"medgate/pkg/platform/httputil"
	"medgate/pkg/platform/middleware/request"
	"medgate/pkg/platform/privacy"
	"medgate/pkg/platform/sentinel"
	"medgate/pkg/requestcontext"
)

const msgInvalidCredentials = "Invalid credentials"

// Credentials looks up login accounts.
type Credentials interface {
	GetIdentityByUsername(ctx context.Context, username string) (*models.Identity, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(identity *models.Identity) (string, time.Time, error)
}

// Lockout tracks failed logins per username.
type Lockout interface {
	CheckAllowed(ctx context.Context, identifier string) (*rlmodels.Result, error)
	RecordFailure(ctx context.Context, identifier string) (*rlmodels.Result, error)
	Reset(ctx context.Context, identifier string) error
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=72"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type MeResponse struct {
	IdentityID  string   `json:"identity_id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// AuthHandler serves login, logout and the current principal.
type AuthHandler struct {
	credentials Credentials
	tokens      TokenIssuer
	lockout     Lockout
	logger      *slog.Logger
	validate    *validator.Validate
	// dummyHash is compared against when the username is unknown so both
	// paths cost one bcrypt comparison.
	dummyHash []byte
}

func NewAuthHandler(credentials Credentials, tokens TokenIssuer, lockout Lockout, logger *slog.Logger) *AuthHandler {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("medgate-unknown-account"), bcrypt.DefaultCost)
	return &AuthHandler{
		credentials: credentials,
		tokens:      tokens,
		lockout:     lockout,
		logger:      logger,
		validate:    validator.New(),
		dummyHash:   dummy,
	}
}

// HandleLogin verifies a username and password and issues a bearer token.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	if result, err := h.lockout.CheckAllowed(ctx, req.Username); err != nil {
		h.logger.WarnContext(ctx, "auth lockout check failed, continuing",
			"error", err,
			"request_id", requestID,
		)
	} else if !result.Allowed {
		h.writeLocked(w, r, result)
		return nil
	}

	identity, err := h.authenticate(ctx, req)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeAuthInvalid) {
			return err
		}
		return h.rejectLogin(w, r, req.Username)
	}

	if err := h.lockout.Reset(ctx, req.Username); err != nil {
		h.logger.WarnContext(ctx, "failed to clear auth failures",
			"error", err,
			"request_id", requestID,
		)
	}

	signed, expiresAt, err := h.tokens.Issue(identity)
	if err != nil {
		return err
	}
	requestcontext.OutcomeFrom(ctx).SetIdentity(identity.ID)
	h.logger.InfoContext(ctx, "login succeeded",
		"identity_id", identity.ID.String(),
		"request_id", requestID,
	)
	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	})
	return nil
}

// authenticate returns CodeAuthInvalid for every credential mismatch so
// callers cannot tell unknown, inactive and wrong-password apart.
func (h *AuthHandler) authenticate(ctx context.Context, req LoginRequest) (*models.Identity, error) {
	identity, err := h.credentials.GetIdentityByUsername(ctx, req.Username)
	if errors.Is(err, sentinel.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(req.Password))
		return nil, dErrors.New(dErrors.CodeAuthInvalid, "unknown account")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(req.Password)) != nil {
		return nil, dErrors.New(dErrors.CodeAuthInvalid, "password mismatch")
	}
	if !identity.Active {
		return nil, dErrors.New(dErrors.CodeAuthInvalid, "account inactive")
	}
	return identity, nil
}

func (h *AuthHandler) rejectLogin(w http.ResponseWriter, r *http.Request, username string) error {
	ctx := r.Context()
	result, err := h.lockout.RecordFailure(ctx, username)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to record auth failure",
			"error", err,
			"request_id", request.GetRequestID(ctx),
		)
	} else if !result.Allowed {
		h.writeLocked(w, r, result)
		return nil
	}

	requestcontext.OutcomeFrom(ctx).SetTag(audit.TagAuthFailed)
	h.logger.WarnContext(ctx, "login failed",
		"username", privacy.MaskIdentifier(username),
		"request_id", request.GetRequestID(ctx),
	)
	httputil.WriteError(w, http.StatusUnauthorized, msgInvalidCredentials, "")
	return nil
}

func (h *AuthHandler) writeLocked(w http.ResponseWriter, r *http.Request, result *rlmodels.Result) {
	requestcontext.OutcomeFrom(r.Context()).SetTag(audit.TagAccountLocked)
	ratelimitmw.WriteRateLimitExceeded(w, result, "Too many failed login attempts. Try again later.")
}

// HandleLogout acknowledges the end of a session. Tokens are stateless, so
// the client discards its copy; the request is audited as LOGOUT.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) error {
	if p := identitymw.PrincipalFrom(r.Context()); p != nil {
		h.logger.InfoContext(r.Context(), "logout",
			"identity_id", p.IdentityID.String(),
			"request_id", request.GetRequestID(r.Context()),
		)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// HandleMe returns the resolved principal.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) error {
	p := identitymw.PrincipalFrom(r.Context())
	if p == nil {
		return dErrors.New(dErrors.CodeAuthMissing, "authentication context missing")
	}
	httputil.WriteJSON(w, http.StatusOK, MeResponse{
		IdentityID:  p.IdentityID.String(),
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Roles:       p.Roles(),
		Permissions: p.Permissions(),
	})
	return nil
}
