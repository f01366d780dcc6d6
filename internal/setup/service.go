// Package setup serves the first-run installer used when the gateway has no
// usable configuration.
package setup

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/darkden-lab/ozone/internal/auth"
	"github.com/darkden-lab/ozone/internal/config"
	"github.com/darkden-lab/ozone/internal/logging"
)

// ErrAlreadyCompleted is returned by Init after a successful run.
var ErrAlreadyCompleted = errors.New("setup already completed")

// Service writes the configuration file and hands the loaded result back to
// the process through Configured.
type Service struct {
	path   string
	reason error
	logger *slog.Logger

	mu        sync.Mutex
	completed bool
	done      chan *config.Config
}

// NewService creates a Service writing to path. reason is the load error
// that sent the process into the installer; it is reported by Status.
func NewService(path string, reason error, logger *slog.Logger) *Service {
	return &Service{
		path:   path,
		reason: reason,
		logger: logging.OrDiscard(logger).With("component", "setup"),
		done:   make(chan *config.Config, 1),
	}
}

// Status reports whether setup is still required and why.
func (s *Service) Status() (required bool, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return false, ""
	}
	if s.reason != nil {
		reason = s.reason.Error()
	}
	return true, reason
}

// Configured delivers the configuration once Init succeeds.
func (s *Service) Configured() <-chan *config.Config {
	return s.done
}

// Init writes the configuration described by req, reloads it through the
// regular loader and publishes it on Configured. Only one Init may succeed.
func (s *Service) Init(req initRequest) (*config.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return nil, ErrAlreadyCompleted
	}

	values, err := configValues(req)
	if err != nil {
		return nil, err
	}
	if err := config.Write(s.path, values); err != nil {
		return nil, err
	}
	cfg, err := config.Load(s.path)
	if err != nil {
		return nil, fmt.Errorf("reloading written config: %w", err)
	}

	s.completed = true
	s.logger.Info("configuration written", "path", s.path, "auth_mode", cfg.Auth.Mode, "admin", strings.ToLower(req.Username))
	s.done <- cfg
	return cfg, nil
}

// configValues maps an installer request onto dotted configuration keys.
func configValues(req initRequest) (map[string]any, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing admin password: %w", err)
	}

	mode := req.AuthMode
	if mode == "" {
		mode = auth.ModeBasic
	}
	values := map[string]any{
		"auth.mode":  mode,
		"auth.users": map[string]any{strings.ToLower(req.Username): hash},
	}
	if mode == auth.ModeJWT {
		secret := req.JWTSecret
		if secret == "" {
			if secret, err = randomSecret(); err != nil {
				return nil, err
			}
		}
		values["auth.jwt_secret"] = secret
	}
	if req.Port != 0 {
		values["server.port"] = req.Port
	}
	if req.ContextRoot != "" {
		values["api.context_root"] = req.ContextRoot
	}
	if req.PluginsFolder != "" {
		values["plugins.folder"] = req.PluginsFolder
	}
	if req.DatabaseURL != "" {
		values["database.url"] = req.DatabaseURL
	}
	if len(req.KafkaBrokers) > 0 {
		values["events.kafka_brokers"] = req.KafkaBrokers
	}
	return values, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
