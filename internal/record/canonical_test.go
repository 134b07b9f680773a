package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalRecord(t *testing.T) {
	r := Record{ID: "p1", Fields: Fields{"number": String("1"), "name": String("Ada")}}
	b, err := MarshalCanonical(r)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"p1","name":"Ada","number":"1"}`, string(b))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{"text": "<a & b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"text":"<a & b>"}`, string(b))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	b, err := MarshalCanonical("Jose\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"Jos\u00e9\"", string(b))
}

func TestMarshalCanonicalNested(t *testing.T) {
	v := map[string]any{
		"records": []Record{{ID: "x", Fields: Fields{"likes": Int(2)}}},
		"seq":     int64(3),
		"ok":      true,
		"tags":    []string{"b", "a"},
	}
	b, err := MarshalCanonical(v)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true,"records":[{"id":"x","likes":2}],"seq":3,"tags":["b","a"]}`, string(b))
}

func TestMarshalCanonicalRejectsFloat(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	assert.Error(t, err)
}
