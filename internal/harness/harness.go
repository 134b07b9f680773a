package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/listsync/internal/apperr"
	"github.com/roach88/listsync/internal/engine"
	"github.com/roach88/listsync/internal/notify"
	"github.com/roach88/listsync/internal/record"
	"github.com/roach88/listsync/internal/schema"
	"github.com/roach88/listsync/internal/testutil"
)

// waitTimeout bounds how long a step may wait for its op. The fake remote
// answers immediately, so hitting it means the engine is stuck.
const waitTimeout = 5 * time.Second

// Harness executes one scenario against a real engine, a fake remote store
// and a notification center driven by a manual clock.
type Harness struct {
	scenario *Scenario
	kind     schema.Kind
	remote   *testutil.FakeRemote
	tokens   *testutil.StaticTokens
	sched    *testutil.ManualScheduler
	center   *notify.Center
	engine   *engine.Engine
	logger   *slog.Logger

	noticeMu sync.Mutex
	notices  map[notify.Kind]int

	// pending is the conflict left by the last create, confirmed by resolve.
	pending *engine.Conflict
}

// sequentialIDs numbers ops so repeated runs log identical op ids.
type sequentialIDs struct{ n atomic.Int64 }

func (g *sequentialIDs) Generate() string {
	return fmt.Sprintf("op-%d", g.n.Add(1))
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Seed a fake remote and start an engine over it
//  2. Load the list (not traced)
//  3. Execute steps, checking expect clauses
//  4. Evaluate assertions
//
// The returned error is for scenarios that cannot run at all (unknown
// kind, a step naming a record that does not exist, a stuck engine).
// Failed checks are reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	kind, err := resolveKind(scenario)
	if err != nil {
		return nil, err
	}

	seed := make([]record.Record, 0, len(scenario.Seed))
	for i, raw := range scenario.Seed {
		fields, err := fieldsFromYAML(raw)
		if err != nil {
			return nil, fmt.Errorf("seed[%d]: %w", i, err)
		}
		seed = append(seed, record.Record{Fields: fields})
	}

	h := &Harness{
		scenario: scenario,
		kind:     kind,
		remote:   testutil.NewFakeRemote(seed...),
		tokens:   testutil.NewStaticTokens(scenario.Token),
		sched:    testutil.NewManualScheduler(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		notices:  make(map[notify.Kind]int),
	}
	if scenario.RequireToken != "" {
		h.remote.RequireToken(scenario.RequireToken)
	}
	h.center = notify.NewCenter(notify.WithScheduler(h.sched), notify.WithLogger(h.logger))
	h.center.Subscribe(h.countNotice)
	h.engine = engine.New(kind, h.remote, h.tokens, h.center,
		engine.WithLogger(h.logger),
		engine.WithIDGenerator(&sequentialIDs{}),
	)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.engine.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	op, err := h.engine.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial load: %w", err)
	}
	if _, err := h.wait(ctx, op); err != nil {
		return nil, fmt.Errorf("initial load: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, out, err := h.execute(ctx, i, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
		result.Trace = append(result.Trace, ev)
		h.checkExpect(i, step, ev, out, result)

		h.logger.Info("step completed",
			"step", i,
			"action", step.Action,
			"phase", ev.Phase,
			"code", ev.Code,
		)
	}

	result.Records = h.engine.Records()
	for _, msg := range EvaluateAssertions(h, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func resolveKind(s *Scenario) (schema.Kind, error) {
	var kinds []schema.Kind
	var err error
	if s.Kinds != "" {
		kinds, err = schema.LoadFile(s.Kinds)
	} else {
		kinds, err = schema.Builtin()
	}
	if err != nil {
		return schema.Kind{}, fmt.Errorf("load kinds: %w", err)
	}
	k, ok := schema.Find(kinds, s.Kind)
	if !ok {
		return schema.Kind{}, fmt.Errorf("unknown kind %q", s.Kind)
	}
	return k, nil
}

func (h *Harness) countNotice(n notify.Notification, ok bool) {
	if !ok {
		return
	}
	h.noticeMu.Lock()
	h.notices[n.Kind]++
	h.noticeMu.Unlock()
}

func (h *Harness) noticeCount(kind notify.Kind) int {
	h.noticeMu.Lock()
	defer h.noticeMu.Unlock()
	return h.notices[kind]
}

// stepOutcome is what an op step produced.
type stepOutcome struct {
	isOp bool
	rec  record.Record
	err  error
}

func (h *Harness) execute(ctx context.Context, i int, step Step) (TraceEvent, stepOutcome, error) {
	ev := TraceEvent{Step: i, Action: step.Action}

	var (
		op  *engine.Op
		err error
	)
	switch step.Action {
	case ActionLoad:
		op, err = h.engine.LoadAll(ctx)

	case ActionCreate:
		fields, ferr := fieldsFromYAML(step.Fields)
		if ferr != nil {
			return ev, stepOutcome{}, ferr
		}
		ev.Args = record.Fields{"fields": record.Object(fields)}
		op, err = h.engine.Create(ctx, fields)

	case ActionResolve:
		if h.pending == nil {
			return ev, stepOutcome{}, errors.New("no pending conflict to resolve")
		}
		ev.Args = record.Fields{"key": record.String(h.pending.Key())}
		op, err = h.engine.Resolve(ctx, h.pending)
		h.pending = nil

	case ActionUpdate:
		id, rerr := h.target(step)
		if rerr != nil {
			return ev, stepOutcome{}, rerr
		}
		fields, ferr := fieldsFromYAML(step.Fields)
		if ferr != nil {
			return ev, stepOutcome{}, ferr
		}
		ev.Args = targetArgs(step)
		ev.Args["fields"] = record.Object(fields)
		op, err = h.engine.Update(ctx, id, fields)

	case ActionRemove:
		id, rerr := h.target(step)
		if rerr != nil {
			return ev, stepOutcome{}, rerr
		}
		ev.Args = targetArgs(step)
		op, err = h.engine.Remove(ctx, id)

	case ActionLike:
		id, rerr := h.target(step)
		if rerr != nil {
			return ev, stepOutcome{}, rerr
		}
		ev.Args = targetArgs(step)
		op, err = h.engine.Like(ctx, id)

	case ActionDeleteRemote:
		id, rerr := h.target(step)
		if rerr != nil {
			return ev, stepOutcome{}, rerr
		}
		ev.Args = targetArgs(step)
		h.remote.DeleteOutOfBand(id)
		return ev, stepOutcome{}, nil

	case ActionFailNext:
		ev.Args = record.Fields{
			"method": record.String(step.Method),
			"status": record.Int(step.Status),
		}
		if step.Message != "" {
			ev.Args["message"] = record.String(step.Message)
		}
		h.remote.FailNextStatus(step.Method, step.Status, step.Message)
		return ev, stepOutcome{}, nil

	case ActionLogin:
		ev.Args = record.Fields{"token": record.String(step.Token)}
		h.tokens.Set(step.Token)
		return ev, stepOutcome{}, nil

	case ActionLogout:
		h.tokens.Set("")
		return ev, stepOutcome{}, nil

	case ActionAdvance:
		ev.Args = record.Fields{"duration": record.String(step.Duration.String())}
		h.sched.Advance(step.Duration)
		ev.Notice = h.notice()
		return ev, stepOutcome{}, nil

	default:
		return ev, stepOutcome{}, fmt.Errorf("unknown action %q", step.Action)
	}

	out := stepOutcome{isOp: true}
	if err != nil {
		// Rejected before reaching the loop.
		if apperr.CodeOf(err) == "" {
			return ev, stepOutcome{}, err
		}
		ev.Phase = "rejected"
		ev.Code = string(apperr.CodeOf(err))
		out.err = err
	} else {
		out.rec, out.err = h.wait(ctx, op)
		if errors.Is(out.err, context.DeadlineExceeded) {
			return ev, stepOutcome{}, fmt.Errorf("op did not complete within %s", waitTimeout)
		}
		ev.Seq = op.Seq
		ev.Phase = op.Phase().String()
		ev.Code = string(apperr.CodeOf(out.err))
		if out.rec.ID != "" {
			rec := out.rec.Clone()
			ev.Record = &rec
		}
		if c, ok := op.Conflict(); ok {
			h.pending = c
		}
	}
	ev.Notice = h.notice()
	ev.List = h.keys()
	return ev, out, nil
}

func (h *Harness) wait(ctx context.Context, op *engine.Op) (record.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()
	return op.Wait(ctx)
}

// target resolves a step's record: by key against the local list, then the
// remote collection, or by id as given.
func (h *Harness) target(step Step) (string, error) {
	if step.Key == "" {
		return step.ID, nil
	}
	if r, ok := h.engine.LookupKey(step.Key); ok {
		return r.ID, nil
	}
	if r, ok := record.FindByKey(h.remote.Records(), h.kind.UniqueField, record.FoldKey(step.Key)); ok {
		return r.ID, nil
	}
	return "", fmt.Errorf("no record with key %q", step.Key)
}

func targetArgs(step Step) record.Fields {
	if step.Key != "" {
		return record.Fields{"key": record.String(step.Key)}
	}
	return record.Fields{"id": record.String(step.ID)}
}

func (h *Harness) notice() string {
	n, ok := h.center.Current()
	if !ok {
		return ""
	}
	return n.Text
}

func (h *Harness) keys() []string {
	list := h.engine.Records()
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.Fields.Text(h.kind.UniqueField)
	}
	return out
}

func (h *Harness) checkExpect(i int, step Step, ev TraceEvent, out stepOutcome, result *Result) {
	x := step.Expect
	if x == nil {
		return
	}
	prefix := fmt.Sprintf("step %d (%s)", i, step.Action)

	if x.Code != "" {
		want := strings.ToUpper(x.Code)
		got := CodeOK
		if out.err != nil {
			got = string(apperr.CodeOf(out.err))
			if got == "" {
				got = out.err.Error()
			}
		}
		if got != want {
			result.AddError(fmt.Sprintf("%s: expected code %s, got %s", prefix, want, got))
		}
	}

	if x.NoNotice && ev.Notice != "" {
		result.AddError(fmt.Sprintf("%s: expected no notification, got %q", prefix, ev.Notice))
	}
	if x.Notice != "" && ev.Notice != x.Notice {
		result.AddError(fmt.Sprintf("%s: expected notification %q, got %q", prefix, x.Notice, ev.Notice))
	}

	if x.Record != nil {
		want, err := fieldsFromYAML(x.Record)
		if err != nil {
			result.AddError(fmt.Sprintf("%s: expect.record: %v", prefix, err))
			return
		}
		if !matchFields(out.rec.Fields, want) {
			result.AddError(fmt.Sprintf("%s: expected record %v, got %v", prefix, want, out.rec.Fields))
		}
	}
}

// fieldsFromYAML converts YAML-decoded values to record fields.
func fieldsFromYAML(raw map[string]any) (record.Fields, error) {
	fields := make(record.Fields, len(raw))
	for name, v := range raw {
		val, err := record.FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		fields[name] = val
	}
	return fields, nil
}
