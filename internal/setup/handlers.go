package setup

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/ozone/internal/auth"
	"github.com/darkden-lab/ozone/internal/httputil"
)

// Handlers provides HTTP handlers for the first-run installer.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new Handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers public setup routes (no auth required).
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/_ozone/setup/status", h.handleStatus).Methods("GET")
	r.HandleFunc("/_ozone/setup/init", h.handleInit).Methods("POST")
}

// statusResponse is the payload for GET /_ozone/setup/status.
type statusResponse struct {
	SetupRequired bool   `json:"setup_required"`
	Reason        string `json:"reason,omitempty"`
}

// initRequest is the expected payload for POST /_ozone/setup/init.
type initRequest struct {
	Username      string   `json:"username"`
	Password      string   `json:"password"`
	AuthMode      string   `json:"auth_mode"`
	JWTSecret     string   `json:"jwt_secret"`
	Port          int      `json:"port"`
	ContextRoot   string   `json:"context_root"`
	PluginsFolder string   `json:"plugins_folder"`
	DatabaseURL   string   `json:"database_url"`
	KafkaBrokers  []string `json:"kafka_brokers"`
}

// initResponse is returned on successful init.
type initResponse struct {
	AuthMode    string `json:"auth_mode"`
	Port        int    `json:"port"`
	ContextRoot string `json:"context_root"`
}

func (h *Handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	required, reason := h.service.Status()
	httputil.WriteJSON(w, http.StatusOK, statusResponse{SetupRequired: required, Reason: reason})
}

func (h *Handlers) handleInit(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes)).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if problems := validateInitRequest(req); len(problems) > 0 {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   "validation_failed",
			"message": "Request validation failed",
			"details": problems,
		})
		return
	}

	cfg, err := h.service.Init(req)
	if errors.Is(err, ErrAlreadyCompleted) {
		httputil.WriteJSON(w, http.StatusConflict, map[string]string{
			"error":   "setup_already_completed",
			"message": "Initial setup has already been completed",
		})
		return
	}
	if err != nil {
		h.service.logger.Error("setup failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to write configuration")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, initResponse{
		AuthMode:    cfg.Auth.Mode,
		Port:        cfg.Server.Port,
		ContextRoot: cfg.API.ContextRoot,
	})
}

// validateInitRequest checks all fields and returns any validation problems.
func validateInitRequest(req initRequest) []httputil.FieldError {
	var problems []httputil.FieldError
	add := func(field, msg string) {
		problems = append(problems, httputil.FieldError{Field: field, Message: msg})
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		add("username", "username is required")
	} else if strings.ContainsAny(username, " .:\t") {
		add("username", "username must not contain spaces, dots or colons")
	}

	if req.Password == "" {
		add("password", "password is required")
	} else if len(req.Password) < 8 {
		add("password", "password must be at least 8 characters")
	}

	switch req.AuthMode {
	case "", auth.ModeBasic, auth.ModeJWT:
	default:
		add("auth_mode", "auth_mode must be basic or jwt")
	}
	if req.JWTSecret != "" && len(req.JWTSecret) < 16 {
		add("jwt_secret", "jwt_secret must be at least 16 characters")
	}

	if req.Port < 0 || req.Port > 65535 {
		add("port", "port must be between 1 and 65535")
	}
	if req.ContextRoot != "" && !strings.HasPrefix(req.ContextRoot, "/") {
		add("context_root", "context_root must start with /")
	}
	if req.DatabaseURL != "" {
		if u, err := url.Parse(req.DatabaseURL); err != nil || u.Scheme == "" {
			add("database_url", "database_url must be a valid URL")
		}
	}

	return problems
}
