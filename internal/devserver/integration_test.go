package devserver_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/listsync/internal/apperr"
	"github.com/roach88/listsync/internal/devserver"
	"github.com/roach88/listsync/internal/engine"
	"github.com/roach88/listsync/internal/kv"
	"github.com/roach88/listsync/internal/notify"
	"github.com/roach88/listsync/internal/record"
	"github.com/roach88/listsync/internal/remote"
	"github.com/roach88/listsync/internal/schema"
	"github.com/roach88/listsync/internal/session"
	"github.com/roach88/listsync/internal/testutil"
)

// stack is a client wired the way the CLI wires it, talking to a real
// devserver over HTTP.
type stack struct {
	server   *devserver.Server
	client   *remote.Client
	sessions *session.Manager
	center   *notify.Center
}

func newStack(t *testing.T) *stack {
	t.Helper()
	kinds, err := schema.Builtin()
	require.NoError(t, err)

	srv, err := devserver.New(devserver.Config{
		Kinds: kinds,
		Users: []devserver.User{{Username: "root", Name: "Superuser", Password: "salainen"}},
		Seed: map[string][]record.Fields{
			"contacts": {
				{"name": record.String("Arto Hellas"), "number": record.String("040-123456")},
				{"name": record.String("Ada Lovelace"), "number": record.String("39-44-5323523")},
			},
		},
		Secret:     []byte("integration"),
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)

	store, err := kv.Open(filepath.Join(t.TempDir(), "listsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	client := remote.NewClient(hs.URL, remote.WithHTTPClient(hs.Client()))
	return &stack{
		server:   srv,
		client:   client,
		sessions: session.NewManager(client, store),
		center:   notify.NewCenter(notify.WithScheduler(testutil.NewManualScheduler())),
	}
}

func (s *stack) engine(t *testing.T, kind string) *engine.Engine {
	t.Helper()
	k := schema.MustBuiltin(kind)
	eng := engine.New(k, s.client.Resource(k.Path), s.sessions, s.center)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	await(t)(eng.LoadAll(context.Background()))
	return eng
}

// await returns a func taking an op call's results directly, so callers can
// write await(t)(eng.Create(ctx, fields)).
func await(t *testing.T) func(*engine.Op, error) (record.Record, error) {
	return func(op *engine.Op, err error) (record.Record, error) {
		t.Helper()
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rec, err := op.Wait(ctx)
		require.NotErrorIs(t, err, context.DeadlineExceeded)
		return rec, err
	}
}

func (s *stack) lastText(t *testing.T) string {
	t.Helper()
	n, ok := s.center.Current()
	require.True(t, ok, "no notification showing")
	return n.Text
}

func TestContacts_ConflictConfirmAgainstServer(t *testing.T) {
	s := newStack(t)
	eng := s.engine(t, "contacts")
	require.Equal(t, 2, eng.Len())

	_, err := await(t)(eng.Create(context.Background(), record.Fields{
		"name": record.String("ada lovelace"), "number": record.String("555"),
	}))
	conflict, ok := engine.ConflictOf(err)
	require.True(t, ok, "want conflict, got %v", err)
	assert.Equal(t, "Ada Lovelace is already added to the list, replace the old record with a new one?", conflict.Prompt())

	rec, err := await(t)(eng.Resolve(context.Background(), conflict))
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", rec.Fields.Text("name"))
	assert.Equal(t, "555", rec.Fields.Text("number"))
	assert.Equal(t, "Updated Ada Lovelace", s.lastText(t))

	server := s.server.Records("contacts")
	require.Len(t, server, 2)
	assert.Equal(t, "555", server[1].Fields.Text("number"))
	assert.Equal(t, server, eng.Records())
}

func TestContacts_StaleUpdateRemovesLocalCopy(t *testing.T) {
	s := newStack(t)
	eng := s.engine(t, "contacts")
	arto := eng.Records()[0]

	require.True(t, s.server.DeleteRecord("contacts", arto.ID))

	_, err := await(t)(eng.Update(context.Background(), arto.ID, record.Fields{
		"name": record.String("Arto Hellas"), "number": record.String("1"),
	}))
	assert.True(t, apperr.IsStale(err), "got %v", err)
	assert.Equal(t, "Information of Arto Hellas has already been removed from server", s.lastText(t))
	assert.Equal(t, 1, eng.Len())
	_, found := eng.Lookup(arto.ID)
	assert.False(t, found)
}

func TestContacts_ServerUniqueRejection(t *testing.T) {
	s := newStack(t)
	eng := s.engine(t, "contacts")

	// Another client adds the same key after our load.
	other := s.client.Resource("/api/persons")
	_, err := other.Create(context.Background(), "", record.Fields{
		"name": record.String("Dan Abramov"), "number": record.String("1"),
	})
	require.NoError(t, err)

	_, err = await(t)(eng.Create(context.Background(), record.Fields{
		"name": record.String("Dan Abramov"), "number": record.String("2"),
	}))
	assert.True(t, apperr.IsTransport(err), "got %v", err)
	assert.Contains(t, s.lastText(t), "Cannot add Dan Abramov: ")
	assert.Equal(t, 2, eng.Len())
}

func TestBlogs_AuthLifecycle(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	eng := s.engine(t, "blogs")

	fields := record.Fields{
		"title":  record.String("Go Proverbs"),
		"author": record.String("Rob Pike"),
		"url":    record.String("https://go-proverbs.github.io"),
	}
	_, err := await(t)(eng.Create(ctx, fields))
	assert.True(t, apperr.IsAuthFailed(err), "got %v", err)
	assert.Zero(t, eng.Len())

	_, err = s.sessions.Login(ctx, "root", "wrong")
	assert.True(t, apperr.IsAuthFailed(err))

	sess, err := s.sessions.Login(ctx, "root", "salainen")
	require.NoError(t, err)
	assert.Equal(t, "Superuser", sess.Name)

	created, err := await(t)(eng.Create(ctx, fields))
	require.NoError(t, err)
	assert.Equal(t, "Added Go Proverbs", s.lastText(t))

	liked, err := await(t)(eng.Like(ctx, created.ID))
	require.NoError(t, err)
	assert.Equal(t, record.Int(1), liked.Fields["likes"])
	assert.Equal(t, "Liked Go Proverbs", s.lastText(t))

	require.NoError(t, s.sessions.Logout(ctx))
	_, err = await(t)(eng.Remove(ctx, created.ID))
	assert.True(t, apperr.IsAuthFailed(err), "got %v", err)
	assert.Equal(t, 1, eng.Len())

	_, ok, err := s.sessions.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.sessions.Login(ctx, "root", "salainen")
	require.NoError(t, err)
	_, err = await(t)(eng.Remove(ctx, created.ID))
	require.NoError(t, err)
	assert.Zero(t, eng.Len())
	assert.Empty(t, s.server.Records("blogs"))
}

func TestLoadAll_FaultEmptiesList(t *testing.T) {
	s := newStack(t)
	eng := s.engine(t, "contacts")
	require.Equal(t, 2, eng.Len())

	s.server.Faults().Set(devserver.Fault{Method: "GET", Path: "/api/persons", StatusCode: 503, Message: "maintenance", Times: 1})
	_, err := await(t)(eng.LoadAll(context.Background()))
	assert.True(t, apperr.IsTransport(err), "got %v", err)
	assert.Zero(t, eng.Len())
	assert.Equal(t, "Cannot load contacts: maintenance", s.lastText(t))

	_, err = await(t)(eng.LoadAll(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, 2, eng.Len())
}
