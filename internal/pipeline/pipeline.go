package pipeline

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/ozone/internal/audit"
	"github.com/darkden-lab/ozone/internal/auth"
	"github.com/darkden-lab/ozone/internal/events"
	"github.com/darkden-lab/ozone/internal/format"
	"github.com/darkden-lab/ozone/internal/logging"
	"github.com/darkden-lab/ozone/internal/manifest"
	"github.com/darkden-lab/ozone/internal/metrics"
	"github.com/darkden-lab/ozone/internal/params"
	"github.com/darkden-lab/ozone/internal/plugin"
	"github.com/darkden-lab/ozone/internal/response"
	"github.com/darkden-lab/ozone/internal/timing"
)

// Deps are the collaborators of a Pipeline. Manifests, Events, Metrics and
// Logger are optional.
type Deps struct {
	Reserved   *params.Registry
	Engine     *plugin.Engine
	Manifests  *manifest.Store
	Dispatcher *plugin.Dispatcher
	Assembler  *response.Assembler
	Formats    *format.Registry
	Timings    *timing.Store
	Events     *events.Publisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Pipeline is the request entry point every synthesized route points at.
type Pipeline struct {
	Deps
	logger *slog.Logger
}

func New(d Deps) *Pipeline {
	if d.Reserved == nil {
		d.Reserved = params.DefaultRegistry()
	}
	if d.Formats == nil {
		d.Formats = format.NewRegistry()
	}
	if d.Timings == nil {
		d.Timings = timing.NewStore(timing.DefaultCapacity)
	}
	return &Pipeline{Deps: d, logger: logging.OrDiscard(d.Logger).With("component", "pipeline")}
}

// exchange is the state of one request as it moves through the stages.
type exchange struct {
	w     http.ResponseWriter
	r     *http.Request
	start time.Time
	url   string

	rc       *plugin.RequestContext
	binding  *plugin.Binding
	manifest *manifest.Manifest
	route    string

	// options marks an OPTIONS enumeration of a manifest base URI.
	options   bool
	enumerate bool
	format    string

	result  *plugin.Result
	payload any
	status  int
	out     format.Output

	stage  Stage
	err    error
	failed Stage
	sent   bool
}

// ServeHTTP runs the request stages for a synthesized method route.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	x := p.begin(w, r)
	x.binding = p.resolve(r)
	if x.binding != nil {
		x.manifest = x.binding.Manifest
		x.route = x.binding.URI
		x.rc.Plugin = x.binding.Plugin
	}
	p.serve(x)
}

// EnumerateHandler serves OPTIONS on manifest base URIs: a self-description
// that never reaches the plugin.
func (p *Pipeline) EnumerateHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		x := p.begin(w, r)
		x.options = true
		base, ok := plugin.BaseFrom(r.Context())
		if !ok && p.Engine != nil {
			base, ok = p.Engine.Routes().Base(r.URL.Path)
		}
		if ok {
			x.manifest = base.Manifest
			x.route = base.URI
			x.rc.Plugin = base.Plugin
		}
		p.serve(x)
	})
}

func (p *Pipeline) begin(w http.ResponseWriter, r *http.Request) *exchange {
	id := timing.NewID()
	p.Timings.Start(id, timing.PreAPI)
	return &exchange{
		w:     w,
		r:     r,
		start: time.Now(),
		url:   r.URL.RequestURI(),
		rc: &plugin.RequestContext{
			ID:       id,
			Identity: auth.NameFromContext(r.Context()),
		},
	}
}

// resolve finds the binding of the matched route. The synthesizer attaches
// it to the context; the route table is consulted when it did not.
func (p *Pipeline) resolve(r *http.Request) *plugin.Binding {
	if b, ok := plugin.BindingFrom(r.Context()); ok {
		return b
	}
	if p.Engine == nil {
		return nil
	}
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			if b, ok := p.Engine.Routes().Lookup(tpl, r.Method); ok {
				return b
			}
		}
	}
	if b, ok := p.Engine.Routes().Lookup(r.URL.Path, r.Method); ok {
		return b
	}
	return nil
}

func (p *Pipeline) serve(x *exchange) {
	defer p.finish(x)
	audit.Annotate(x.r.Context(), x.rc.ID, x.rc.Plugin)
	p.run(x, StageClassify)
}

// run advances x until StageDone. A failing or panicking stage diverts to
// StageRecover, which always produces a response.
func (p *Pipeline) run(x *exchange, st Stage) {
	for st != StageDone {
		x.stage = st
		next, err := p.step(x, st)
		if err != nil {
			p.Metrics.StageError(st.String())
			if x.err != nil {
				// Recovery itself failed.
				p.lastResort(x, err)
				return
			}
			x.err, x.failed = err, st
			next = StageRecover
		}
		st = next
	}
}

// step executes one stage, converting panics into errors.
func (p *Pipeline) step(x *exchange, st Stage) (next Stage, err error) {
	defer func() {
		if v := recover(); v != nil {
			next, err = StageRecover, panicError(v)
		}
	}()

	switch st {
	case StageClassify:
		return p.classify(x)
	case StageDispatch:
		return p.dispatch(x)
	case StageBuild:
		return p.build(x)
	case StageEnumerate:
		return p.enumerateStage(x)
	case StageAnnotate:
		return p.annotate(x)
	case StageFormat:
		return p.formatStage(x)
	case StageHeaders:
		return p.headers(x)
	case StageSend:
		return p.send(x)
	case StageRecover:
		return p.recoverStage(x)
	}
	return StageDone, fmt.Errorf("unknown stage %d", st)
}

func (p *Pipeline) classify(x *exchange) (Stage, error) {
	c := params.Classify(params.Collect(x.r), p.Reserved)
	x.rc.Reserved, x.rc.Domain = c.Reserved, c.Domain
	x.format = p.Reserved.String(c.Reserved, params.Format)
	x.enumerate = x.options || p.Reserved.Flag(c.Reserved, params.Enumerate)

	if p.Engine != nil && !p.Engine.IsReady() {
		return StageDone, ErrNotReady
	}
	if x.enumerate {
		return StageEnumerate, nil
	}
	return StageDispatch, nil
}

func (p *Pipeline) dispatch(x *exchange) (Stage, error) {
	res, err := p.Dispatcher.Dispatch(x.r.Context(), x.binding, x.rc)
	if err != nil {
		return StageDone, err
	}
	x.result = res
	return StageBuild, nil
}

func (p *Pipeline) build(x *exchange) (Stage, error) {
	env := response.Build(x.url, x.result)
	x.payload = env
	x.status = env.StatusCode()
	return StageAnnotate, nil
}

func (p *Pipeline) enumerateStage(x *exchange) (Stage, error) {
	if p.Manifests != nil && x.rc.Plugin != "" {
		if m, ok := p.Manifests.Get(x.rc.Plugin); ok {
			x.manifest = m
		}
	}
	if x.manifest == nil {
		return StageDone, plugin.ErrNoBinding
	}
	x.payload = response.Enumerate(x.manifest, x.route)
	x.status = http.StatusOK
	return StageFormat, nil
}

func (p *Pipeline) annotate(x *exchange) (Stage, error) {
	if env, ok := x.payload.(*response.Envelope); ok && p.Assembler != nil {
		p.Assembler.Annotate(env, x.r, x.rc)
	}
	return StageFormat, nil
}

func (p *Pipeline) formatStage(x *exchange) (Stage, error) {
	out, err := p.Formats.Produce(x.format, x.payload, format.Options{
		Enumerate: x.enumerate && x.err == nil,
		Manifest:  x.manifest,
	})
	if err != nil {
		return StageDone, err
	}
	x.out = out
	return StageHeaders, nil
}

func (p *Pipeline) headers(x *exchange) (Stage, error) {
	h := x.w.Header()
	h.Set("Content-Type", x.out.ContentType)
	for k, v := range x.out.Headers {
		h.Set(k, v)
	}
	h.Set("X-Request-Id", x.rc.ID)
	response.ApplyCORS(h, x.manifest)
	return StageSend, nil
}

func (p *Pipeline) send(x *exchange) (Stage, error) {
	if x.status == 0 {
		x.status = http.StatusOK
	}
	x.w.WriteHeader(x.status)
	x.sent = true
	if _, err := x.w.Write(x.out.Body); err != nil {
		p.logger.Debug("client went away", "id", x.rc.ID, "error", err)
	}

	p.Timings.End(x.rc.ID, timing.PostAPI)
	started, ended, total := p.Timings.RoundTrip(x.rc.ID)
	p.logger.Info("request served",
		"id", x.rc.ID,
		"method", x.r.Method,
		"url", x.url,
		"plugin", x.rc.Plugin,
		"status", x.status,
		"identity", x.rc.Identity,
		"started", started,
		"ended", ended,
		"round_trip_ms", total,
	)
	return StageDone, nil
}

// recoverStage replaces the payload with a failure envelope in the requested
// format. Nothing is sent twice.
func (p *Pipeline) recoverStage(x *exchange) (Stage, error) {
	if x.sent {
		p.logger.Error("stage failed after response was sent",
			"id", x.rc.ID, "stage", x.failed.String(), "error", x.err)
		return StageDone, nil
	}

	status := statusFor(x.err)
	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	p.logger.Log(x.r.Context(), level, "request failed",
		"id", x.rc.ID,
		"method", x.r.Method,
		"url", x.url,
		"plugin", x.rc.Plugin,
		"stage", x.failed.String(),
		"status", status,
		"error", x.err,
	)

	x.payload = response.Failure(x.url, status, clientMessage(status))
	x.status = status
	if x.format == "" || x.failed == StageFormat {
		x.format = format.Default
	}
	return StageFormat, nil
}

// lastResort answers when the recover path itself fails.
func (p *Pipeline) lastResort(x *exchange, err error) {
	p.logger.Error("recovery failed", "id", x.rc.ID, "stage", x.stage.String(), "error", err, "cause", x.err)
	if x.sent {
		return
	}
	x.sent = true
	x.status = http.StatusInternalServerError
	http.Error(x.w, http.StatusText(x.status), x.status)
}

// finish publishes the outcome and releases the timing entry.
func (p *Pipeline) finish(x *exchange) {
	elapsed := time.Since(x.start)
	p.Metrics.ObserveRequest(x.rc.Plugin, x.r.Method, x.status, elapsed)

	meta := map[string]any{
		"id":          x.rc.ID,
		"method":      x.r.Method,
		"url":         x.url,
		"plugin":      x.rc.Plugin,
		"status":      x.status,
		"identity":    x.rc.Identity,
		"duration_ms": float64(elapsed.Microseconds()) / 1000,
	}
	title := x.r.Method + " " + x.r.URL.Path
	if x.err != nil {
		meta["stage"] = x.failed.String()
		p.Events.EmitKeyed(x.rc.Plugin, events.TopicRequestFailed, events.SeverityError, title, meta)
	} else {
		p.Events.EmitKeyed(x.rc.Plugin, events.TopicRequestCompleted, events.SeverityInfo, title, meta)
	}
	p.Timings.Release(x.rc.ID)
}
