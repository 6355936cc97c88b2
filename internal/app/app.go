// Package app assembles the looptap bridge from its parts.
//
// New wires the inert pieces: readiness flags, metrics, stats, the probe
// handler. Run does the platform work on its calling goroutine — thread
// preparation, source and sink resolution (config first, interactive prompt
// when the config names neither), stream negotiation — and then drives the
// pipeline and the optional diagnostics server until the context ends.
//
// For testing, inject doubles via functional options (WithPlatform,
// WithSelector, WithMetrics). When an option is not provided, New uses the
// OS-backed implementations.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/looptap/looptap/internal/config"
	"github.com/looptap/looptap/internal/health"
	"github.com/looptap/looptap/internal/observe"
	"github.com/looptap/looptap/internal/prompt"
	"github.com/looptap/looptap/internal/server"
	"github.com/looptap/looptap/internal/stream"
	"github.com/looptap/looptap/pkg/activate"
	"github.com/looptap/looptap/pkg/endpoint"
)

// activateTimeout bounds the wait for a process-loopback activation. The
// platform answers within milliseconds when the target process exists.
const activateTimeout = 10 * time.Second

// App owns the bridge lifecycle.
type App struct {
	cfg *config.Config
	log *slog.Logger

	platform Platform
	selector *prompt.Selector
	metrics  *observe.Metrics
	stats    *stream.BridgeStats

	captureUp health.Flag
	renderUp  health.Flag
	bridgeUp  health.Flag
	probes    *health.Handler
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithPlatform injects an endpoint platform instead of the OS adapter.
func WithPlatform(p Platform) Option {
	return func(a *App) { a.platform = p }
}

// WithSelector injects a prompt selector instead of building one from the
// config's prompt script or stdin.
func WithSelector(s *prompt.Selector) Option {
	return func(a *App) { a.selector = s }
}

// WithMetrics injects a metrics set, usually one backed by a manual reader.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New wires an App from cfg. It performs no platform calls; those happen in
// Run.
func New(cfg *config.Config, log *slog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	if log == nil {
		log = slog.Default()
	}
	a := &App{
		cfg: cfg,
		log: log.With("component", "app"),
	}
	for _, o := range opts {
		o(a)
	}
	if a.platform == nil {
		a.platform = NewPlatform()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.stats = stream.NewBridgeStats(0)
	a.probes = health.New(
		a.captureUp.Checker("capture"),
		a.renderUp.Checker("render"),
		a.bridgeUp.Checker("bridge"),
	)
	return a, nil
}

// Run executes the bridge until ctx is done or an endpoint call fails.
// Cancellation is a clean shutdown and returns nil. The calling goroutine
// ends up locked to its OS thread; Run is a once-per-process affair.
func (a *App) Run(ctx context.Context) error {
	// ── 1. Platform thread + device system ─────────────────────────────
	if err := a.platform.Prepare(); err != nil {
		return fmt.Errorf("app: prepare platform: %w", err)
	}
	defer a.platform.Close()

	// ── 2. Resolve the capture source and render sink ──────────────────
	capture, render, err := a.resolveClients(ctx)
	if err != nil {
		return err
	}
	defer capture.Close()
	defer render.Close()

	// ── 3. Negotiate and start both streams ────────────────────────────
	pipe, err := a.buildPipeline(ctx, capture, render)
	if err != nil {
		return err
	}
	defer a.captureUp.Down("stream stopped")
	defer a.renderUp.Down("stream stopped")

	// ── 4. Pipeline + diagnostics server ───────────────────────────────
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.platform.PrepareStreaming(a.log); err != nil {
			return fmt.Errorf("app: prepare streaming thread: %w", err)
		}
		a.bridgeUp.Up()
		defer a.bridgeUp.Down("bridge loop stopped")
		defer a.metrics.RecordStreamStopped(context.Background(), "capture")
		defer a.metrics.RecordStreamStopped(context.Background(), "render")
		return pipe.Run(ctx)
	})
	if addr := a.cfg.Diagnostics.ListenAddr; addr != "" {
		srv, err := server.New(server.Config{
			Addr:    addr,
			Stats:   a.stats,
			Health:  a.probes,
			Metrics: a.metrics,
			Log:     a.log,
		})
		if err != nil {
			return fmt.Errorf("app: diagnostics server: %w", err)
		}
		g.Go(func() error { return srv.Run(ctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// resolveClients opens the capture source and the render sink. The render
// endpoint opens first; its mix format anchors both stream negotiations.
func (a *App) resolveClients(ctx context.Context) (capture, render endpoint.Client, err error) {
	src, outID, err := a.selection()
	if err != nil {
		return nil, nil, err
	}

	render, err = a.openRender(outID)
	if err != nil {
		return nil, nil, err
	}
	capture, err = a.openCapture(ctx, src)
	if err != nil {
		render.Close()
		return nil, nil, err
	}
	return capture, render, nil
}

// selection determines the capture source and output device ID, prompting
// for whatever the config leaves unset. A configured input suppresses all
// prompting; an empty output outside the interactive flow means the default
// render endpoint.
func (a *App) selection() (prompt.Source, string, error) {
	in := a.cfg.Input
	outID := a.cfg.Output.DeviceID
	switch {
	case in.Process != nil:
		return prompt.Source{PID: in.Process.PID, IncludeTree: in.Process.IncludeTree}, outID, nil
	case in.DeviceID != "":
		return prompt.Source{DeviceID: in.DeviceID}, outID, nil
	}

	sel, done, err := a.openSelector()
	if err != nil {
		return prompt.Source{}, "", err
	}
	defer done()

	captureDevs, err := a.platform.Devices(endpoint.FlowCapture)
	if err != nil {
		return prompt.Source{}, "", fmt.Errorf("app: list capture devices: %w", err)
	}
	src, err := sel.ChooseSource(promptDevices(captureDevs))
	if err != nil {
		return prompt.Source{}, "", err
	}

	if outID == "" {
		renderDevs, err := a.platform.Devices(endpoint.FlowRender)
		if err != nil {
			return prompt.Source{}, "", fmt.Errorf("app: list render devices: %w", err)
		}
		dev, err := sel.ChooseDevice("Please select output device:", promptDevices(renderDevs))
		if err != nil {
			return prompt.Source{}, "", err
		}
		outID = dev.ID
	}
	return src, outID, nil
}

// openSelector returns the injected selector or builds one reading from the
// config's prompt script, falling back to stdin. The second return releases
// whatever the selector reads from.
func (a *App) openSelector() (*prompt.Selector, func(), error) {
	if a.selector != nil {
		return a.selector, func() {}, nil
	}
	if path := a.cfg.PromptScript; path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("app: open prompt script: %w", err)
		}
		return prompt.New(f, os.Stdout), func() { f.Close() }, nil
	}
	return prompt.New(os.Stdin, os.Stdout), func() {}, nil
}

func (a *App) openRender(id string) (endpoint.Client, error) {
	if id == "" {
		cli, err := a.platform.DefaultDevice(endpoint.FlowRender)
		if err != nil {
			return nil, fmt.Errorf("app: open default render device: %w", err)
		}
		return cli, nil
	}
	cli, err := a.platform.OpenDevice(id)
	if err != nil {
		return nil, fmt.Errorf("app: open render device %q: %w", id, err)
	}
	return cli, nil
}

// openCapture opens a capture device directly, or activates a
// process-loopback endpoint for process sources.
func (a *App) openCapture(ctx context.Context, src prompt.Source) (endpoint.Client, error) {
	if !src.IsProcess() {
		cli, err := a.platform.OpenDevice(src.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("app: open capture device %q: %w", src.DeviceID, err)
		}
		return cli, nil
	}

	ctx, span := observe.StartSpan(ctx, "activate capture endpoint")
	defer span.End()
	log := observe.Logger(ctx).With("component", "app")

	actx, cancel := context.WithTimeout(ctx, activateTimeout)
	defer cancel()

	start := time.Now()
	cli, err := activate.WithContext(actx, a.platform.Activator(), endpoint.LoopbackTarget{
		ProcessID:   src.PID,
		IncludeTree: src.IncludeTree,
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	a.metrics.RecordActivation(ctx, time.Since(start), status)
	if err != nil {
		return nil, fmt.Errorf("app: activate process loopback for pid %d: %w", src.PID, err)
	}
	log.Info("process loopback activated",
		"pid", src.PID,
		"include_tree", src.IncludeTree,
		"wait", time.Since(start),
	)
	return cli, nil
}

// buildPipeline negotiates both streams against the render endpoint's mix
// format and assembles the bridge. Streams are running when it returns.
func (a *App) buildPipeline(ctx context.Context, capture, render endpoint.Client) (*stream.Pipeline, error) {
	ev, err := a.platform.NewEvent()
	if err != nil {
		return nil, fmt.Errorf("app: create wake event: %w", err)
	}

	want, err := render.MixFormat()
	if err != nil {
		want = endpoint.DefaultFormat()
		a.log.Warn("render endpoint reports no mix format; using fallback", "format", want, "err", err)
	}

	capInfo, err := stream.Setup(capture, stream.RoleCapture, want, ev, a.log)
	if err != nil {
		return nil, fmt.Errorf("app: set up capture stream: %w", err)
	}
	a.captureUp.Up()
	a.metrics.RecordStreamStarted(ctx, "capture")

	renInfo, err := stream.Setup(render, stream.RoleRender, want, ev, a.log)
	if err != nil {
		return nil, fmt.Errorf("app: set up render stream: %w", err)
	}
	a.renderUp.Up()
	a.metrics.RecordStreamStarted(ctx, "render")

	pipe, err := stream.NewPipeline(stream.PipelineConfig{
		Capture:      capture,
		CaptureInfo:  capInfo,
		Render:       render,
		RenderInfo:   renInfo,
		Event:        ev,
		RingCapacity: a.cfg.Ring.CapacityBytes,
		LatencyWarn:  a.cfg.Diagnostics.LatencyWarn(),
		Stats:        a.stats,
		Metrics:      a.metrics,
		Log:          a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("app: build pipeline: %w", err)
	}
	return pipe, nil
}

// promptDevices converts enumerated endpoints into prompt menu entries.
func promptDevices(infos []endpoint.DeviceInfo) []prompt.Device {
	devs := make([]prompt.Device, len(infos))
	for i, d := range infos {
		devs[i] = prompt.Device{ID: d.ID, Name: d.Name}
	}
	return devs
}
