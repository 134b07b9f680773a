package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordJSONIsFlat(t *testing.T) {
	r := Record{ID: "p1", Fields: Fields{"name": String("Ada"), "number": String("1")}}

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"p1","name":"Ada","number":"1"}`, string(b))

	var back Record
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r, back)
}

func TestRecordUnmarshalNumericID(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"id": 7, "name": "Ada"}`), &r))
	assert.Equal(t, "7", r.ID)
	assert.Equal(t, String("Ada"), r.Fields["name"])
}

func TestRecordUnmarshalWithoutID(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"name": "Ada"}`), &r))
	assert.Empty(t, r.ID)
}

func TestRecordUnmarshalRejectsNonObject(t *testing.T) {
	var r Record
	assert.Error(t, json.Unmarshal([]byte(`"Ada"`), &r))
	assert.Error(t, json.Unmarshal([]byte(`{"id": true}`), &r))
	assert.Error(t, json.Unmarshal([]byte(`{"likes": 1.5}`), &r))
}

func TestRecordListUnmarshal(t *testing.T) {
	var list []Record
	data := `[{"id":"b1","title":"Go","likes":3,"user":{"username":"root"}},{"id":"b2","title":"Rust","likes":0}]`
	require.NoError(t, json.Unmarshal([]byte(data), &list))
	require.Len(t, list, 2)
	assert.Equal(t, Int(3), list[0].Fields["likes"])
	assert.Equal(t, Object{"username": String("root")}, list[0].Fields["user"])
}

func TestFieldsCloneIsIndependent(t *testing.T) {
	f := Fields{"name": String("Ada")}
	c := f.Clone()
	c["name"] = String("Grace")
	assert.Equal(t, String("Ada"), f["name"])

	assert.Nil(t, Fields(nil).Clone())
}

func TestFieldsWith(t *testing.T) {
	f := Fields{"likes": Int(1)}
	g := f.With("likes", Int(2))
	assert.Equal(t, Int(1), f["likes"])
	assert.Equal(t, Int(2), g["likes"])

	h := Fields(nil).With("likes", Int(1))
	assert.Equal(t, Int(1), h["likes"])
}

func TestFieldsInt(t *testing.T) {
	f := Fields{"likes": Int(4), "title": String("x")}

	n, ok := f.Int("likes")
	assert.True(t, ok)
	assert.Equal(t, int64(4), n)

	n, ok = f.Int("missing")
	assert.True(t, ok)
	assert.Zero(t, n)

	_, ok = f.Int("title")
	assert.False(t, ok)
}

func TestIndexOf(t *testing.T) {
	list := []Record{{ID: "a"}, {ID: "b"}}
	assert.Equal(t, 1, IndexOf(list, "b"))
	assert.Equal(t, -1, IndexOf(list, "c"))
}
