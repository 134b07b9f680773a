package schema

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinKinds(t *testing.T) {
	kinds, err := Builtin()
	require.NoError(t, err)
	require.Len(t, kinds, 2)

	contacts, ok := Find(kinds, "contacts")
	require.True(t, ok)
	assert.Equal(t, "/api/persons", contacts.Path)
	assert.Equal(t, "name", contacts.UniqueField)
	assert.Empty(t, contacts.CounterField)
	assert.False(t, contacts.RequiresAuth)
	assert.Equal(t, []Field{
		{Name: "name", Type: TypeString},
		{Name: "number", Type: TypeString},
	}, contacts.Fields)

	blogs, ok := Find(kinds, "blogs")
	require.True(t, ok)
	assert.Equal(t, "/api/blogs", blogs.Path)
	assert.Equal(t, "title", blogs.UniqueField)
	assert.Equal(t, "likes", blogs.CounterField)
	assert.Equal(t, "likes", blogs.RankField)
	assert.True(t, blogs.RequiresAuth)

	likes, ok := blogs.Field("likes")
	require.True(t, ok)
	assert.True(t, likes.Optional)
	assert.Equal(t, TypeInt, likes.Type)
}

func TestCompileKindBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		kind: notes: {
			path:   "/api/notes"
			unique: "content"
			fields: {
				content:   string & !=""
				important: bool
			}
		}
	`)
	require.NoError(t, v.Err())

	k, err := Compile(v.LookupPath(cue.ParsePath("kind.notes")))
	require.NoError(t, err)
	assert.Equal(t, "notes", k.Name)
	assert.Equal(t, "/api/notes", k.Path)
	assert.Len(t, k.Fields, 2)
}

func TestCompileKindErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{
			name:    "missing path",
			src:     `kind: x: { unique: "name", fields: { name: string } }`,
			wantMsg: "path is required",
		},
		{
			name:    "missing unique",
			src:     `kind: x: { path: "/x", fields: { name: string } }`,
			wantMsg: "unique is required",
		},
		{
			name:    "undeclared unique",
			src:     `kind: x: { path: "/x", unique: "title", fields: { name: string } }`,
			wantMsg: `unique field "title" is not declared`,
		},
		{
			name:    "unique not a string",
			src:     `kind: x: { path: "/x", unique: "n", fields: { n: int } }`,
			wantMsg: `unique field "n" must be a string`,
		},
		{
			name:    "optional unique",
			src:     `kind: x: { path: "/x", unique: "n", fields: { n?: string } }`,
			wantMsg: "must not be optional",
		},
		{
			name:    "counter not an int",
			src:     `kind: x: { path: "/x", unique: "n", counter: "c", fields: { n: string, c: string } }`,
			wantMsg: `counter field "c" must be an int`,
		},
		{
			name:    "float field",
			src:     `kind: x: { path: "/x", unique: "n", fields: { n: string, f: float } }`,
			wantMsg: "float fields are not supported",
		},
		{
			name:    "missing fields",
			src:     `kind: x: { path: "/x", unique: "n" }`,
			wantMsg: "fields are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.src), "test.cue")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadNoKinds(t *testing.T) {
	_, err := Load([]byte(`other: 1`), "empty.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no kinds defined")
}

func TestLoadSyntaxError(t *testing.T) {
	_, err := Load([]byte(`kind: {`), "broken.cue")
	require.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("/nonexistent/kinds.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read kinds file")
}

func TestMustBuiltinPanicsOnUnknown(t *testing.T) {
	assert.NotPanics(t, func() { MustBuiltin("contacts") })
	assert.Panics(t, func() { MustBuiltin("nope") })
}
