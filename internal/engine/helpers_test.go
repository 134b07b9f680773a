package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/listsync/internal/record"
	"github.com/roach88/listsync/internal/schema"
	"github.com/roach88/listsync/internal/testutil"
)

type fixture struct {
	eng    *Engine
	remote *testutil.FakeRemote
	notes  *testutil.NotifyRecorder
	tokens *testutil.StaticTokens
}

// newFixture starts an engine for kind over a fake remote seeded with seed,
// and loads the list.
func newFixture(t *testing.T, kind string, seed ...record.Record) *fixture {
	t.Helper()
	f := &fixture{
		remote: testutil.NewFakeRemote(seed...),
		notes:  testutil.NewNotifyRecorder(),
		tokens: testutil.NewStaticTokens("tok"),
	}
	f.eng = New(schema.MustBuiltin(kind), f.remote, f.tokens, f.notes)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.eng.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	op, err := f.eng.LoadAll(context.Background())
	require.NoError(t, err)
	_, err = wait(t, op)
	require.NoError(t, err)
	return f
}

func wait(t *testing.T, op *Op) (record.Record, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec, err := op.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "op %s did not complete", op.Action)
	return rec, err
}

func person(name, number string) record.Record {
	return record.Record{Fields: personFields(name, number)}
}

func personFields(name, number string) record.Fields {
	return record.Fields{"name": record.String(name), "number": record.String(number)}
}

func blog(title string, likes int64) record.Record {
	return record.Record{Fields: record.Fields{
		"title":  record.String(title),
		"author": record.String("Rob Pike"),
		"url":    record.String("https://example.com/" + title),
		"likes":  record.Int(likes),
	}}
}

func names(list []record.Record) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.Fields.Text("name")
	}
	return out
}
