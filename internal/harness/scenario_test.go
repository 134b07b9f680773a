package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/ada_conflict.yaml")
	require.NoError(t, err)

	assert.Equal(t, "ada_conflict", s.Name)
	assert.Equal(t, "contacts", s.Kind)
	require.Len(t, s.Seed, 2)
	require.Len(t, s.Steps, 3)
	assert.Equal(t, ActionCreate, s.Steps[0].Action)
	assert.Equal(t, "CONFLICT_DETECTED", s.Steps[0].Expect.Code)
	assert.True(t, s.Steps[0].Expect.NoNotice)
	assert.Equal(t, 5*time.Second, s.Steps[2].Duration)
	assert.Len(t, s.Assertions, 6)
}

func TestLoadScenario_AllFixturesParse(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, p := range paths {
		_, err := LoadScenario(p)
		assert.NoError(t, err, p)
	}
}

func TestLoadScenario_KindsPathResolvedAgainstFile(t *testing.T) {
	dir := t.TempDir()
	body := `
name: custom
description: d
kind: books
kinds: kinds.cue
steps:
  - action: load
`
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "kinds.cue"), s.Kinds)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestParseScenario_Errors(t *testing.T) {
	const head = "name: n\ndescription: d\nkind: contacts\n"
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", head + "stepz: []\n", "field stepz not found"},
		{"no name", "description: d\nkind: contacts\nsteps: [{action: load}]\n", "name is required"},
		{"no description", "name: n\nkind: contacts\nsteps: [{action: load}]\n", "description is required"},
		{"no kind", "name: n\ndescription: d\nsteps: [{action: load}]\n", "kind is required"},
		{"no steps", head, "steps list is required"},
		{"unknown action", head + "steps: [{action: dance}]\n", `unknown action "dance"`},
		{"missing action", head + "steps: [{key: x}]\n", "action is required"},
		{"create without fields", head + "steps: [{action: create}]\n", "create needs fields"},
		{"update without target", head + "steps: [{action: update, fields: {a: b}}]\n", "update needs key or id"},
		{"remove without target", head + "steps: [{action: remove}]\n", "remove needs key or id"},
		{"fail_next bad method", head + "steps: [{action: fail_next, method: patch, status: 500}]\n", `unknown method "patch"`},
		{"fail_next no status", head + "steps: [{action: fail_next, method: update}]\n", "fail_next needs status"},
		{"login without token", head + "steps: [{action: login}]\n", "login needs token"},
		{"advance without duration", head + "steps: [{action: advance}]\n", "positive duration"},
		{"unknown code", head + "steps: [{action: load, expect: {code: NOPE}}]\n", `unknown code "NOPE"`},
		{"unknown assertion", head + "steps: [{action: load}]\nassertions: [{type: vibes}]\n", `unknown assertion type "vibes"`},
		{"remote_calls without method", head + "steps: [{action: load}]\nassertions: [{type: remote_calls}]\n", "needs method"},
		{"notice_count without kind", head + "steps: [{action: load}]\nassertions: [{type: notice_count}]\n", "needs kind"},
		{"negative count", head + "steps: [{action: load}]\nassertions: [{type: remote_calls, method: list, count: -1}]\n", "non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseScenario_LowercaseCodeAccepted(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: n
description: d
kind: contacts
steps:
  - action: load
    expect: { code: transport }
`))
	assert.NoError(t, err)
}
