package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/listsync/internal/record"
	"github.com/roach88/listsync/internal/schema"
)

func TestParseAssignments_UsesDeclaredTypes(t *testing.T) {
	fields, err := parseAssignments(schema.MustBuiltin("contacts"), []string{"name=Ada=Lovelace", "number=123", "extra=true"})
	require.NoError(t, err)
	assert.Equal(t, record.Fields{
		"name":   record.String("Ada=Lovelace"),
		"number": record.String("123"),
		"extra":  record.Bool(true),
	}, fields)

	fields, err = parseAssignments(schema.MustBuiltin("blogs"), []string{"title=Go", "likes=7"})
	require.NoError(t, err)
	assert.Equal(t, record.Int(7), fields["likes"])
}

func TestParseAssignments_Errors(t *testing.T) {
	blogs := schema.MustBuiltin("blogs")

	_, err := parseAssignments(blogs, []string{"likes=1.5"})
	assert.ErrorContains(t, err, `"1.5" is not an integer`)

	_, err = parseAssignments(blogs, []string{"=x"})
	assert.ErrorContains(t, err, `expected field=value, got "=x"`)

	_, err = parseAssignments(blogs, []string{"id=3"})
	assert.ErrorContains(t, err, "id is assigned by the server")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestColumns_UniqueFirst(t *testing.T) {
	assert.Equal(t, []string{"title", "author", "likes", "url"}, columns(schema.MustBuiltin("blogs")))
	assert.Equal(t, []string{"name", "number"}, columns(schema.MustBuiltin("contacts")))
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes ", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		var w bytes.Buffer
		got, err := confirm(strings.NewReader(tt.in), &w, "Remove Ada?")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Equal(t, "Remove Ada? [y/N] ", w.String())
	}
}

func TestFilterRecords(t *testing.T) {
	list := []record.Record{
		{ID: "1", Fields: record.Fields{"name": record.String("Arto Hellas")}},
		{ID: "2", Fields: record.Fields{"name": record.String("Ada Lovelace")}},
	}
	assert.Len(t, filterRecords(list, "name", ""), 2)
	assert.Len(t, filterRecords(list, "name", "  "), 2)

	got := filterRecords(list, "name", "LOVE")
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}
