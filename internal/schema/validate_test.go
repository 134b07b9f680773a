package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/listsync/internal/apperr"
	"github.com/roach88/listsync/internal/record"
)

func TestValidateContacts(t *testing.T) {
	k := MustBuiltin("contacts")

	err := k.Validate("create", record.Fields{"name": record.String("Ada"), "number": record.String("1")})
	assert.NoError(t, err)
}

func TestValidateRejects(t *testing.T) {
	contacts := MustBuiltin("contacts")
	blogs := MustBuiltin("blogs")

	tests := []struct {
		name   string
		kind   Kind
		fields record.Fields
	}{
		{"missing required", contacts, record.Fields{"name": record.String("Ada")}},
		{"empty unique", contacts, record.Fields{"name": record.String(""), "number": record.String("1")}},
		{"blank unique", contacts, record.Fields{"name": record.String("  "), "number": record.String("1")}},
		{"wrong type", contacts, record.Fields{"name": record.String("Ada"), "number": record.Int(1)}},
		{"empty constrained field", contacts, record.Fields{"name": record.String("Ada"), "number": record.String("")}},
		{"negative counter", blogs, record.Fields{
			"title": record.String("Go"), "author": record.String("R"), "url": record.String("http://x"), "likes": record.Int(-1),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.kind.Validate("create", tt.fields)
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}
}

func TestValidateBlogOptionalCounter(t *testing.T) {
	k := MustBuiltin("blogs")

	fields := record.Fields{
		"title":  record.String("Go Proverbs"),
		"author": record.String("Rob Pike"),
		"url":    record.String("https://go-proverbs.github.io"),
	}
	assert.NoError(t, k.Validate("create", fields))
	assert.NoError(t, k.Validate("create", fields.With("likes", record.Int(3))))
}

func TestValidateAllowsUndeclaredFields(t *testing.T) {
	k := MustBuiltin("blogs")

	fields := record.Fields{
		"title":  record.String("Go"),
		"author": record.String("R"),
		"url":    record.String("http://x"),
		"user":   record.Object{"username": record.String("root")},
	}
	assert.NoError(t, k.Validate("update", fields))
}

func TestValidateWithoutSchema(t *testing.T) {
	k := Kind{Name: "bare", UniqueField: "name", Fields: []Field{{Name: "name", Type: TypeString}}}
	assert.NoError(t, k.Validate("create", record.Fields{"name": record.String("x")}))
	assert.Error(t, k.Validate("create", record.Fields{}))
}

func TestValidateConcurrent(t *testing.T) {
	k := MustBuiltin("contacts")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = k.Validate("create", record.Fields{"name": record.String("Ada"), "number": record.String("1")})
		}()
	}
	wg.Wait()
}
