package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/darkden-lab/ozone/internal/events"
	"github.com/darkden-lab/ozone/internal/logging"
	"github.com/darkden-lab/ozone/internal/manifest"
	"github.com/darkden-lab/ozone/internal/metrics"
	"github.com/darkden-lab/ozone/internal/plugin"
)

// BootReport summarises startup.
type BootReport struct {
	Folder     string        `json:"folder"`
	Discovered int           `json:"discovered"`
	Loaded     int           `json:"loaded"`
	Failed     int           `json:"failed"`
	Routes     int           `json:"routes"`
	Duration   time.Duration `json:"duration"`
}

// Booter runs the startup stages against one plugin folder.
type Booter struct {
	Store   *manifest.Store
	Engine  *plugin.Engine
	Events  *events.Publisher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Boot discovers and loads the manifests under folder, synthesizes their
// routes and waits until every plugin has settled. Plugin failures never
// fail the boot; only ctx ending before quiescence does.
func (b *Booter) Boot(ctx context.Context, folder string) (BootReport, error) {
	return b.run(ctx, folder, b.Store.Load)
}

// Reload runs the same stages after swapping the store's table with a fresh
// read of folder. Engine must be a new engine with an empty route table.
func (b *Booter) Reload(ctx context.Context, folder string) (BootReport, error) {
	return b.run(ctx, folder, b.Store.Reload)
}

func (b *Booter) run(ctx context.Context, folder string, load func(string) manifest.LoadResult) (BootReport, error) {
	logger := logging.OrDiscard(b.Logger).With("component", "boot")
	started := time.Now()
	report := BootReport{Folder: folder}

	// discover + load
	logger.Debug("stage", "stage", BootDiscover.String(), "folder", folder)
	res := load(folder)
	report.Discovered = res.Discovered
	b.Engine.Expect(res.Discovered)

	logger.Debug("stage", "stage", BootLoad.String(), "loaded", len(res.Loaded), "failed", len(res.Failures))
	for _, f := range res.Failures {
		if res.Discovered == 0 {
			// The folder itself is unusable; there is no plugin to settle.
			logger.Warn("plugin folder unavailable, starting without plugins", "folder", folder, "error", f.Err)
			continue
		}
		b.Engine.Fail(ctx, f.Dir, f.Err)
		b.Events.Emit(events.TopicPluginFailed, events.SeverityWarning, "plugin failed to load",
			map[string]string{"dir": f.Dir, "error": f.Err.Error()})
	}

	// synthesize
	logger.Debug("stage", "stage", BootSynthesize.String())
	for _, m := range res.Loaded {
		bound, err := b.Engine.Synthesize(ctx, m)
		report.Routes += len(bound)
		if err != nil {
			b.Events.EmitKeyed(m.ID(), events.TopicPluginFailed, events.SeverityWarning, "plugin "+m.ID()+" failed",
				map[string]any{"plugin": m.ID(), "routes": len(bound), "error": err.Error()})
			continue
		}
		b.Events.EmitKeyed(m.ID(), events.TopicPluginLoaded, events.SeverityInfo, "plugin "+m.ID()+" loaded",
			map[string]any{"plugin": m.ID(), "routes": len(bound)})
	}

	// ready
	select {
	case <-b.Engine.Ready():
	case <-ctx.Done():
		return report, fmt.Errorf("waiting for plugins to settle: %w", ctx.Err())
	}

	_, loaded, failed := b.Engine.Counts()
	report.Loaded, report.Failed = loaded, failed
	report.Duration = time.Since(started)
	b.Metrics.SetPlugins(loaded, failed, true)
	b.Events.Emit(events.TopicGatewayReady, events.SeverityInfo, "gateway ready", report)
	logger.Info("gateway ready",
		"stage", BootReady.String(),
		"discovered", report.Discovered,
		"loaded", report.Loaded,
		"failed", report.Failed,
		"routes", report.Routes,
		"duration", report.Duration,
	)
	return report, nil
}
