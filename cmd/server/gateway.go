package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/ozone/docs"
	"github.com/darkden-lab/ozone/internal/audit"
	"github.com/darkden-lab/ozone/internal/auth"
	"github.com/darkden-lab/ozone/internal/config"
	"github.com/darkden-lab/ozone/internal/db"
	"github.com/darkden-lab/ozone/internal/events"
	"github.com/darkden-lab/ozone/internal/httputil"
	"github.com/darkden-lab/ozone/internal/manifest"
	"github.com/darkden-lab/ozone/internal/metrics"
	mw "github.com/darkden-lab/ozone/internal/middleware"
	"github.com/darkden-lab/ozone/internal/params"
	"github.com/darkden-lab/ozone/internal/pipeline"
	"github.com/darkden-lab/ozone/internal/plugin"
	"github.com/darkden-lab/ozone/internal/response"
	"github.com/darkden-lab/ozone/internal/timing"
	"github.com/darkden-lab/ozone/internal/ws"
	pluginEcho "github.com/darkden-lab/ozone/plugins/echo"
	pluginWidgets "github.com/darkden-lab/ozone/plugins/widgets"
)

// Token endpoint limit: 5 req/min per IP with burst of 5.
const (
	tokenRPS   = 5.0 / 60.0
	tokenBurst = 5
)

// errReloading is returned when a reload is already running.
var errReloading = errors.New("a reload is already in progress")

// gateway is every long-lived component of a configured process. The
// engine, pipeline and router form a generation that Reload replaces as a
// whole; gate serves whichever generation was installed last.
type gateway struct {
	cfg    *config.Config
	logger *slog.Logger
	gate   *gate

	metrics    *metrics.Metrics
	broker     events.Broker
	publisher  *events.Publisher
	hub        *ws.Hub
	authn      auth.Authenticator
	users      *auth.Users
	jwtService *auth.JWTService
	auditStore *audit.Store
	store      *plugin.Store
	registry   *plugin.Registry
	reserved   *params.Registry
	timings    *timing.Store
	manifests  *manifest.Store

	reloading sync.Mutex
	mu        sync.RWMutex
	engine    *plugin.Engine

	closers []func()
}

func (g *gateway) Close() {
	for i := len(g.closers) - 1; i >= 0; i-- {
		g.closers[i]()
	}
}

// newGateway wires the components described by cfg. Optional backends
// (database, Kafka) that fail to come up are logged and skipped. No route is
// served until Boot installs the first generation.
func newGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gateway, error) {
	g := &gateway{cfg: cfg, logger: logger, gate: &gate{}}
	ok := false
	defer func() {
		if !ok {
			g.Close()
		}
	}()

	// Metrics
	if cfg.Metrics.Enabled {
		g.metrics = metrics.New()
	}

	// Events
	broker, err := events.NewBroker(cfg.Events, logger)
	if err != nil {
		logger.Warn("event broker unavailable, falling back to in-memory", "error", err)
		broker = events.NewInMemoryBroker()
	}
	g.broker = broker
	g.closers = append(g.closers, func() { _ = broker.Close() })
	g.publisher = events.NewPublisher(broker, logger)

	// WebSocket hub
	hubCtx, stopHub := context.WithCancel(ctx)
	g.closers = append(g.closers, stopHub)
	g.hub = ws.NewHub(logger)
	go g.hub.Run(hubCtx)
	if err := ws.Bridge(broker, g.hub); err != nil {
		logger.Warn("event stream bridge failed", "error", err)
	}

	// Database (optional)
	if cfg.Database.URL != "" {
		database, err := db.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Warn("database connection failed, continuing without audit", "error", err)
		} else {
			g.closers = append(g.closers, database.Close)
			if err := db.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
				logger.Warn("migrations failed", "error", err)
			}
			g.auditStore = audit.NewStore(database.Pool)
			g.store = plugin.NewStore(database.Pool)
		}
	}

	// Authentication
	g.authn, err = auth.NewAuthenticator(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if cfg.Auth.Mode == auth.ModeJWT {
		g.jwtService = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	}
	g.users = auth.NewUsers(cfg.Auth.Users)

	// Implementations
	g.registry = plugin.NewRegistry()
	pluginWidgets.Register(g.registry)
	pluginEcho.Register(g.registry)
	wasm := plugin.NewWasmRuntime(ctx)
	g.registry.SetWasm(wasm)
	g.closers = append(g.closers, func() { _ = wasm.Close(context.Background()) })

	// Shared by every generation
	g.reserved = reservedRegistry(cfg.Reserved)
	g.timings = timing.NewStore(cfg.Timing.Capacity)
	validator, err := manifest.DefaultValidator()
	if err != nil {
		return nil, fmt.Errorf("manifest validator: %w", err)
	}
	g.manifests = manifest.NewStore(cfg.Plugins.Prefix, validator, logger)

	ok = true
	return g, nil
}

// generation is one engine with the router serving its routes.
type generation struct {
	engine *plugin.Engine
	router *mux.Router
	booter *pipeline.Booter
}

func (g *gateway) newGeneration() *generation {
	cfg, logger := g.cfg, g.logger

	engine := plugin.NewEngine(cfg.API.ContextRoot, g.registry, plugin.NewRouteTable(), logger)
	if g.store != nil {
		engine.SetRecorder(g.store)
	}
	pipe := pipeline.New(pipeline.Deps{
		Reserved:   g.reserved,
		Engine:     engine,
		Manifests:  g.manifests,
		Dispatcher: plugin.NewDispatcher(g.timings, cfg.Plugins.Timeout),
		Assembler:  response.NewAssembler(g.timings, response.NewHostProbe(), g.reserved),
		Timings:    g.timings,
		Events:     g.publisher,
		Metrics:    g.metrics,
		Logger:     logger,
	})

	// Router
	r := mux.NewRouter()
	r.Use(mw.AccessLog(logger))
	r.Use(mw.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))

	// Health and metrics (no auth)
	r.HandleFunc("/healthz", healthzHandler).Methods("GET")
	r.HandleFunc("/readyz", readyzHandler(engine)).Methods("GET")
	if g.metrics != nil {
		r.Handle(cfg.Metrics.Path, g.metrics.Handler()).Methods("GET")
	}

	// API documentation (no auth)
	docs.RegisterRoutes(r)

	// Token endpoint (no auth, strict limit)
	tokens := r.PathPrefix("/_ozone/auth").Subrouter()
	tokens.Use(mw.StrictRateLimitMiddleware(tokenRPS, tokenBurst))
	auth.NewHandlers(g.users, g.jwtService).RegisterRoutes(tokens)

	// WebSocket (authenticates on upgrade)
	ws.NewHandler(g.hub, g.authn, cfg.Server.AllowedOrigins).RegisterRoutes(r)

	// Protected routes
	protected := r.PathPrefix("").Subrouter()
	protected.Use(mw.Authenticate(g.authn, logger))
	if g.auditStore != nil {
		protected.Use(audit.Middleware(g.auditStore, logger))
		audit.NewHandlers(g.auditStore).RegisterRoutes(protected)
	}
	protected.HandleFunc("/_ozone/plugins/reload", g.handleReload).Methods("POST")
	plugin.NewHandlers(engine, g.manifests).RegisterRoutes(protected)
	engine.Mount(plugin.MuxRouter{R: protected}, pipe, pipe.EnumerateHandler())

	return &generation{
		engine: engine,
		router: r,
		booter: &pipeline.Booter{
			Store:   g.manifests,
			Engine:  engine,
			Events:  g.publisher,
			Metrics: g.metrics,
			Logger:  logger,
		},
	}
}

// Boot loads the plugin folder, synthesizes every route and installs the
// resulting router.
func (g *gateway) Boot(ctx context.Context) (pipeline.BootReport, error) {
	return g.start(ctx, (*pipeline.Booter).Boot)
}

// Reload reads the plugin folder again into a fresh generation and swaps it
// in once it has settled. Requests keep reaching the previous generation
// until then.
func (g *gateway) Reload(ctx context.Context) (pipeline.BootReport, error) {
	if !g.reloading.TryLock() {
		return pipeline.BootReport{}, errReloading
	}
	defer g.reloading.Unlock()
	return g.start(ctx, (*pipeline.Booter).Reload)
}

func (g *gateway) start(ctx context.Context, boot func(*pipeline.Booter, context.Context, string) (pipeline.BootReport, error)) (pipeline.BootReport, error) {
	gen := g.newGeneration()
	report, err := boot(gen.booter, ctx, g.cfg.Plugins.Folder)
	if err != nil {
		return report, err
	}

	g.mu.Lock()
	g.engine = gen.engine
	g.mu.Unlock()
	g.gate.Install(gen.router)
	return report, nil
}

// Engine returns the engine of the installed generation.
func (g *gateway) Engine() *plugin.Engine {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine
}

func (g *gateway) handleReload(w http.ResponseWriter, r *http.Request) {
	report, err := g.Reload(r.Context())
	if errors.Is(err, errReloading) {
		httputil.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		g.logger.Error("plugin reload failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "plugin reload failed")
		return
	}
	g.logger.Info("plugins reloaded", "loaded", report.Loaded, "failed", report.Failed, "routes", report.Routes)
	httputil.WriteJSON(w, http.StatusOK, report)
}

func reservedRegistry(table map[string]config.ReservedConfig) *params.Registry {
	if len(table) == 0 {
		return params.DefaultRegistry()
	}
	defs := make(map[string]params.Definition, len(table))
	for name, rc := range table {
		defs[name] = params.DefinitionOf(rc.Type, rc.DefaultValue)
	}
	return params.NewRegistry(defs)
}
