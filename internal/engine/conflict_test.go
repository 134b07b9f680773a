package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/listsync/internal/record"
)

func TestConflict_MergedKeepsExistingKey(t *testing.T) {
	c := &Conflict{
		Existing:    record.Record{ID: "1", Fields: personFields("Ada", "1")},
		Proposed:    personFields("ada", "2"),
		UniqueField: "name",
	}

	assert.Equal(t, personFields("Ada", "2"), c.Merged())
	assert.Equal(t, "ada", c.Proposed.Text("name"), "proposed fields are not modified")
}

func TestConflictOf(t *testing.T) {
	c := &Conflict{Existing: record.Record{ID: "1", Fields: personFields("Ada", "1")}, UniqueField: "name"}
	err := conflictError("create", c)

	got, ok := ConflictOf(err)
	assert.True(t, ok)
	assert.Same(t, c, got)

	_, ok = ConflictOf(errors.New("x"))
	assert.False(t, ok)
	_, ok = ConflictOf(nil)
	assert.False(t, ok)
}
