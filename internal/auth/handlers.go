package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/ozone/internal/httputil"
)

type Handlers struct {
	users *Users
	jwt   *JWTService
}

// NewHandlers serves the token endpoint. jwt may be nil when tokens are not
// issued.
func NewHandlers(users *Users, jwt *JWTService) *Handlers {
	return &Handlers{users: users, jwt: jwt}
}

// RegisterRoutes registers public auth routes (no auth middleware required).
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/_ozone/auth/token", h.handleToken).Methods("POST")
}

type tokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// handleToken exchanges basic credentials, from the Authorization header or
// a JSON body, for a signed token.
func (h *Handlers) handleToken(w http.ResponseWriter, r *http.Request) {
	if h.jwt == nil {
		httputil.WriteError(w, http.StatusNotFound, "token issuing is disabled")
		return
	}

	var req tokenRequest
	if user, pass, ok := r.BasicAuth(); ok {
		req = tokenRequest{Username: user, Password: pass}
	} else if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteRequestError(w, err)
		return
	}

	if !h.users.Verify(req.Username, req.Password) {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expires, err := h.jwt.GenerateToken(strings.ToLower(req.Username))
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expires,
	})
}
