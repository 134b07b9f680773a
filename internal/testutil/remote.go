package testutil

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/roach88/listsync/internal/record"
	"github.com/roach88/listsync/internal/remote"
)

// Methods accepted by FakeRemote.FailNext and FakeRemote.Hold.
const (
	MethodList   = "list"
	MethodCreate = "create"
	MethodUpdate = "update"
	MethodDelete = "delete"
)

// Call is one request seen by a FakeRemote.
type Call struct {
	Method string
	ID     string
	Token  string
	Fields record.Fields
}

// FakeRemote is an in-memory remote collection that satisfies
// engine.Remote. Records get ids "1", "2", ... in creation order.
//
// Failures are injected per method with FailNext; calls can be held open
// with Hold to stage races between in-flight mutations.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeRemote struct {
	mu          sync.Mutex
	records     []record.Record
	nextID      int
	failures    map[string][]error
	gates       map[string]chan struct{}
	calls       []Call
	requireAuth string
}

// NewFakeRemote creates a remote seeded with records. Seed records without
// an id are assigned one.
func NewFakeRemote(seed ...record.Record) *FakeRemote {
	f := &FakeRemote{
		failures: make(map[string][]error),
		gates:    make(map[string]chan struct{}),
	}
	for _, r := range seed {
		r = r.Clone()
		if r.ID == "" {
			r.ID = f.newID()
		} else if n, err := strconv.Atoi(r.ID); err == nil && n > f.nextID {
			f.nextID = n
		}
		f.records = append(f.records, r)
	}
	return f
}

func (f *FakeRemote) newID() string {
	f.nextID++
	return strconv.Itoa(f.nextID)
}

// RequireToken makes every mutating call without this exact token fail
// with 401.
func (f *FakeRemote) RequireToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requireAuth = token
}

// FailNext queues err for the next call of method.
func (f *FakeRemote) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], err)
}

// FailNextStatus queues a StatusError with the given code for method.
func (f *FakeRemote) FailNextStatus(method string, code int, message string) {
	f.FailNext(method, &remote.StatusError{Method: method, StatusCode: code, Message: message})
}

// Hold blocks calls of method until the returned release func is called.
// The call is recorded before it blocks; its effect happens after release.
func (f *FakeRemote) Hold(method string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[method] = ch
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gates[method] == ch {
				delete(f.gates, method)
			}
			f.mu.Unlock()
			close(ch)
		})
	}
}

// DeleteOutOfBand removes a record as another client would.
func (f *FakeRemote) DeleteOutOfBand(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := record.IndexOf(f.records, id); i >= 0 {
		f.records = append(f.records[:i:i], f.records[i+1:]...)
	}
}

// Records returns a copy of the remote collection.
func (f *FakeRemote) Records() []record.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return record.CloneList(f.records)
}

// Calls returns every call seen so far.
func (f *FakeRemote) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many calls of method were seen.
func (f *FakeRemote) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// begin records the call, waits on any gate and pops a queued failure.
func (f *FakeRemote) begin(ctx context.Context, c Call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	gate := f.gates[c.Method]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if queued := f.failures[c.Method]; len(queued) > 0 {
		f.failures[c.Method] = queued[1:]
		return queued[0]
	}
	if c.Method != MethodList && f.requireAuth != "" && c.Token != f.requireAuth {
		return &remote.StatusError{Method: c.Method, StatusCode: http.StatusUnauthorized, Message: "token missing or invalid"}
	}
	return nil
}

func (f *FakeRemote) List(ctx context.Context) ([]record.Record, error) {
	if err := f.begin(ctx, Call{Method: MethodList}); err != nil {
		return nil, err
	}
	return f.Records(), nil
}

func (f *FakeRemote) Create(ctx context.Context, token string, fields record.Fields) (record.Record, error) {
	if err := f.begin(ctx, Call{Method: MethodCreate, Token: token, Fields: fields.Clone()}); err != nil {
		return record.Record{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := record.Record{ID: f.newID(), Fields: fields.Clone()}
	f.records = append(f.records, r)
	return r.Clone(), nil
}

func (f *FakeRemote) Update(ctx context.Context, token, id string, fields record.Fields) (record.Record, error) {
	if err := f.begin(ctx, Call{Method: MethodUpdate, ID: id, Token: token, Fields: fields.Clone()}); err != nil {
		return record.Record{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := record.IndexOf(f.records, id)
	if i < 0 {
		return record.Record{}, notFound(MethodUpdate, id)
	}
	f.records[i] = record.Record{ID: id, Fields: fields.Clone()}
	return f.records[i].Clone(), nil
}

func (f *FakeRemote) Delete(ctx context.Context, token, id string) error {
	if err := f.begin(ctx, Call{Method: MethodDelete, ID: id, Token: token}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := record.IndexOf(f.records, id)
	if i < 0 {
		return notFound(MethodDelete, id)
	}
	f.records = append(f.records[:i:i], f.records[i+1:]...)
	return nil
}

func notFound(method, id string) error {
	return &remote.StatusError{Method: method, Path: "/" + id, StatusCode: http.StatusNotFound, Message: fmt.Sprintf("unknown id %s", id)}
}
