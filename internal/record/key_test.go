package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldKey(t *testing.T) {
	assert.Equal(t, FoldKey("Ada"), FoldKey("ada"))
	assert.Equal(t, FoldKey("ADA LOVELACE"), FoldKey("ada lovelace"))
	assert.Equal(t, FoldKey("  Ada "), FoldKey("ada"))
	assert.NotEqual(t, FoldKey("Ada"), FoldKey("Adam"))

	// Decomposed and precomposed forms fold to the same key
	assert.Equal(t, FoldKey("Jose\u0301"), FoldKey("JOS\u00c9"))

	// Full case folding, not just ASCII lowering
	assert.Equal(t, FoldKey("STRASSE"), FoldKey("straße"))
}

func TestKeyOf(t *testing.T) {
	key, ok := KeyOf(Fields{"name": String("Ada")}, "name")
	assert.True(t, ok)
	assert.Equal(t, FoldKey("ada"), key)

	_, ok = KeyOf(Fields{"name": String("   ")}, "name")
	assert.False(t, ok)

	_, ok = KeyOf(Fields{"name": Int(1)}, "name")
	assert.False(t, ok)

	_, ok = KeyOf(Fields{}, "name")
	assert.False(t, ok)
}

func TestFindByKey(t *testing.T) {
	list := []Record{
		{ID: "1", Fields: Fields{"name": String("Arto Hellas")}},
		{ID: "2", Fields: Fields{"name": String("Ada")}},
	}

	r, ok := FindByKey(list, "name", FoldKey("ADA"))
	assert.True(t, ok)
	assert.Equal(t, "2", r.ID)

	_, ok = FindByKey(list, "name", FoldKey("Grace"))
	assert.False(t, ok)
}
