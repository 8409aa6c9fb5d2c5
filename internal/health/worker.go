// Package health keeps the gateway's view of upstream model servers current.
//
// The [Worker] runs one probe loop per configured model: a cheap ping that
// tells whether the upstream process is reachable, and a full request probe
// that exercises an actual inference round-trip. Results land in the model's
// [model.Status], which the API handlers read. The package also provides
// /healthz and /readyz HTTP handlers for the gateway process itself.
package health

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxgate/voxgate/internal/model"
	"github.com/voxgate/voxgate/internal/observe"
)

const (
	// DefaultPingTimeout bounds one ping probe.
	DefaultPingTimeout = 3 * time.Second

	// DefaultRequestTimeout bounds one end-to-end request probe.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultFailingInterval is the probe interval while a model is not
	// running.
	DefaultFailingInterval = 5 * time.Second

	// DefaultHealthyInterval is the probe interval once a model is running.
	DefaultHealthyInterval = 30 * time.Second

	// DefaultStartupGrace is how long after worker start probe failures are
	// treated as "still booting": the status flags go false but no error
	// message is surfaced. Model servers can take minutes to load weights.
	DefaultStartupGrace = 360 * time.Second
)

// Probe checks one upstream model server.
type Probe interface {
	// Ping checks reachability. Cheap, called frequently.
	Ping(ctx context.Context) error

	// Request exercises a real inference round-trip. Called until it first
	// succeeds, then again only after the model drops out of running state.
	Request(ctx context.Context) error
}

// Pinger is the probe surface shared by all provider clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LLMProbe probes an LLM backend: the HTTP health endpoint for ping and a
// one-token chat completion for the request probe.
type LLMProbe struct {
	Pinger  Pinger
	Chatter interface {
		ProbeChat(ctx context.Context) error
	}
}

func (p LLMProbe) Ping(ctx context.Context) error { return p.Pinger.Ping(ctx) }

func (p LLMProbe) Request(ctx context.Context) error { return p.Chatter.ProbeChat(ctx) }

// GRPCProbe probes a gRPC backend whose Ping RPC already exercises the loaded
// model, so the same call serves as both probes.
type GRPCProbe struct {
	Pinger Pinger
}

func (p GRPCProbe) Ping(ctx context.Context) error { return p.Pinger.Ping(ctx) }

func (p GRPCProbe) Request(ctx context.Context) error { return p.Pinger.Ping(ctx) }

// Target pairs a registered model with its probe.
type Target struct {
	Model *model.Model
	Probe Probe
}

// Worker drives one probe loop per target.
type Worker struct {
	targets []Target
	metrics *observe.Metrics

	pingTimeout     time.Duration
	requestTimeout  time.Duration
	failingInterval time.Duration
	healthyInterval time.Duration
	startupGrace    time.Duration
}

// Option customises a Worker.
type Option func(*Worker)

// WithMetrics records probe failures to the given metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithIntervals overrides the probe intervals.
func WithIntervals(failing, healthy time.Duration) Option {
	return func(w *Worker) {
		w.failingInterval = failing
		w.healthyInterval = healthy
	}
}

// WithStartupGrace overrides the startup grace period.
func WithStartupGrace(d time.Duration) Option {
	return func(w *Worker) { w.startupGrace = d }
}

// WithTimeouts overrides the per-probe timeouts.
func WithTimeouts(ping, request time.Duration) Option {
	return func(w *Worker) {
		w.pingTimeout = ping
		w.requestTimeout = request
	}
}

// NewWorker builds a Worker over the given targets.
func NewWorker(targets []Target, opts ...Option) *Worker {
	w := &Worker{
		targets:         targets,
		pingTimeout:     DefaultPingTimeout,
		requestTimeout:  DefaultRequestTimeout,
		failingInterval: DefaultFailingInterval,
		healthyInterval: DefaultHealthyInterval,
		startupGrace:    DefaultStartupGrace,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run probes every target until ctx is cancelled. It blocks; call it from its
// own goroutine. The first round of probes runs immediately.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range w.targets {
		g.Go(func() error {
			w.loop(ctx, t)
			return nil
		})
	}
	return g.Wait()
}

// loop is the probe cycle for one model: probe, then sleep for the interval
// matching the model's current state.
func (w *Worker) loop(ctx context.Context, t Target) {
	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		w.check(ctx, t, start)

		interval := w.failingInterval
		if t.Model.Status.Running() {
			interval = w.healthyInterval
		}
		timer.Reset(interval)
	}
}

// check runs one probe round against a single model and updates its status.
func (w *Worker) check(ctx context.Context, t Target, start time.Time) {
	st := t.Model.Status
	inGrace := time.Since(start) < w.startupGrace

	pctx, cancel := context.WithTimeout(ctx, w.pingTimeout)
	err := t.Probe.Ping(pctx)
	cancel()
	if err != nil {
		st.SetPingOK(false)
		st.SetRequestOK(false)
		w.fail(ctx, t, inGrace, "ping", err)
		return
	}
	st.SetPingOK(true)

	// The request probe is expensive, so it only runs until the model first
	// comes up, and again after it has dropped out of running state.
	if !st.RequestOK() {
		rctx, cancel := context.WithTimeout(ctx, w.requestTimeout)
		err = t.Probe.Request(rctx)
		cancel()
		if err != nil {
			st.SetRequestOK(false)
			w.fail(ctx, t, inGrace, "request", err)
			return
		}
		st.SetRequestOK(true)
		slog.Info("model became available", "model", t.Model.Record.ResolveName)
	}

	st.SetErr("")
}

// fail records a probe failure. During the startup grace period the flags
// still drop, but no error message is surfaced and nothing is logged at error
// level, since the upstream is likely still loading weights.
func (w *Worker) fail(ctx context.Context, t Target, inGrace bool, probe string, err error) {
	name := t.Model.Record.ResolveName
	if inGrace {
		t.Model.Status.SetErr("")
		slog.Debug("health probe failed during startup grace",
			"model", name, "probe", probe, "err", err)
		return
	}
	t.Model.Status.SetErr(err.Error())
	if w.metrics != nil {
		w.metrics.RecordUpstreamError(ctx, name, string(t.Model.Record.Kind))
	}
	slog.Error("health probe failed", "model", name, "probe", probe, "err", err)
}
