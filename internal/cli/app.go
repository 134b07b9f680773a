package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/listsync/internal/apperr"
	"github.com/roach88/listsync/internal/config"
	"github.com/roach88/listsync/internal/engine"
	"github.com/roach88/listsync/internal/kv"
	"github.com/roach88/listsync/internal/notify"
	"github.com/roach88/listsync/internal/record"
	"github.com/roach88/listsync/internal/remote"
	"github.com/roach88/listsync/internal/schema"
	"github.com/roach88/listsync/internal/session"
)

// app is the client side of one CLI invocation: config, persisted session,
// remote client, notification center and any running engines.
type app struct {
	cfg      config.Config
	kinds    []schema.Kind
	store    *kv.SQLite
	client   *remote.Client
	sessions *session.Manager
	center   *notify.Center
	logger   *slog.Logger

	mu      sync.Mutex
	notices []notify.Notification

	stops []func()
}

// loadConfig reads the config file and applies flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Server != "" {
		cfg.Server = o.Server
	}
	if o.DB != "" {
		cfg.DB = o.DB
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid flags", err)
	}
	return cfg, nil
}

// loadKinds returns the config's kinds file, or the built-in kinds.
func loadKinds(path string) ([]schema.Kind, error) {
	if path == "" {
		return schema.Builtin()
	}
	return schema.LoadFile(path)
}

// openApp wires the client stack and restores any persisted session.
// The caller must Close the app.
func (o *RootOptions) openApp(ctx context.Context) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	kinds, err := loadKinds(cfg.Kinds)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load kinds", err)
	}

	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := kv.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open session database", err)
	}

	client := remote.NewClient(cfg.Server,
		remote.WithTimeout(cfg.Timeout),
		remote.WithLogger(logger))

	a := &app{
		cfg:      cfg,
		kinds:    kinds,
		store:    store,
		client:   client,
		sessions: session.NewManager(client, store, session.WithKey(cfg.SessionKey), session.WithLogger(logger)),
		center:   notify.NewCenter(notify.WithDuration(cfg.Notify.Duration), notify.WithLogger(logger)),
		logger:   logger,
	}
	a.center.Subscribe(a.collect)

	if _, _, err := a.sessions.Restore(ctx); err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "failed to restore session", err)
	}
	return a, nil
}

// Close stops the engines, then closes the session database.
func (a *app) Close() error {
	for i := len(a.stops) - 1; i >= 0; i-- {
		a.stops[i]()
	}
	a.stops = nil
	return a.store.Close()
}

func (a *app) collect(n notify.Notification, ok bool) {
	if !ok {
		return
	}
	a.mu.Lock()
	a.notices = append(a.notices, n)
	a.mu.Unlock()
}

// drain returns and forgets the notifications raised so far.
func (a *app) drain() []notify.Notification {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.notices
	a.notices = nil
	return out
}

func (a *app) kind(name string) (schema.Kind, error) {
	k, ok := schema.Find(a.kinds, name)
	if !ok {
		return schema.Kind{}, NewExitError(ExitCommandError, fmt.Sprintf("unknown kind %q", name))
	}
	return k, nil
}

// engine starts an engine for the named kind and waits for its initial
// load. A failed load is returned as an op failure.
func (a *app) engine(ctx context.Context, name string) (*engine.Engine, error) {
	k, err := a.kind(name)
	if err != nil {
		return nil, err
	}

	e := engine.New(k, a.client.Resource(k.Path), a.sessions, a.center,
		engine.WithLogger(a.logger.With("kind", k.Name)))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := e.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("engine stopped", "kind", k.Name, "error", err)
		}
	}()
	a.stops = append(a.stops, func() {
		cancel()
		<-done
	})

	op, err := e.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := op.Wait(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// target finds a local record by id, then by unique key.
func target(e *engine.Engine, ref string) (record.Record, error) {
	if r, ok := e.Lookup(ref); ok {
		return r, nil
	}
	if r, ok := e.LookupKey(ref); ok {
		return r, nil
	}
	return record.Record{}, NewExitError(ExitCommandError, fmt.Sprintf("no %s record with id or %s %q", e.Kind().Name, e.Kind().UniqueField, ref))
}

// opResult is the JSON payload of a mutating command.
type opResult struct {
	Notices []string       `json:"notices,omitempty"`
	Record  *record.Record `json:"record,omitempty"`
}

// finish reports the notifications raised by a command, plus rec on
// success, and maps err to an exit code.
func (a *app) finish(f *OutputFormatter, rec *record.Record, err error) error {
	notices := noticeTexts(a.drain())

	if err != nil {
		if f.Format == "json" {
			code := string(apperr.CodeOf(err))
			if code == "" {
				code = "ERROR"
			}
			if outErr := f.Error(code, err.Error(), notices); outErr != nil {
				return outErr
			}
		} else {
			for _, n := range notices {
				fmt.Fprintln(f.Writer, n)
			}
		}
		return exitError(err)
	}

	if f.Format == "json" {
		return f.Success(opResult{Notices: notices, Record: rec})
	}
	for _, n := range notices {
		fmt.Fprintln(f.Writer, n)
	}
	return nil
}

func noticeTexts(ns []notify.Notification) []string {
	if len(ns) == 0 {
		return nil
	}
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Text
	}
	return out
}

// exitError maps a classified failure to an exit code. Bad input is a
// command error; anything the server or session refused is a failure.
func exitError(err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	if apperr.IsValidation(err) {
		return WrapExitError(ExitCommandError, "invalid input", err)
	}
	return WrapExitError(ExitFailure, "operation failed", err)
}

// withApp opens the app for a command and closes it afterwards.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := opts.openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Warn("close session database", "error", cerr)
		}
	}()
	return fn(ctx, a)
}
