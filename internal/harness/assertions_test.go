package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/listsync/internal/record"
)

func TestMatchFields(t *testing.T) {
	actual := record.Fields{
		"name":   record.String("Ada Lovelace"),
		"number": record.String("555"),
		"likes":  record.Int(2),
	}

	assert.True(t, matchFields(actual, record.Fields{}))
	assert.True(t, matchFields(actual, record.Fields{"name": record.String("Ada Lovelace")}))
	assert.True(t, matchFields(actual, record.Fields{"likes": record.Int(2)}))
	assert.False(t, matchFields(actual, record.Fields{"likes": record.String("2")}))
	assert.False(t, matchFields(actual, record.Fields{"url": record.String("x")}))
	assert.False(t, matchFields(actual, record.Fields{"name": record.String("ada lovelace")}))
}

func TestAssertRecords(t *testing.T) {
	list := []record.Record{
		{ID: "1", Fields: record.Fields{"name": record.String("Arto Hellas")}},
		{ID: "2", Fields: record.Fields{"name": record.String("Ada Lovelace")}},
	}

	assert.NoError(t, assertRecords(AssertList, list, []map[string]any{
		{"name": "Arto Hellas"}, {"name": "Ada Lovelace"},
	}))

	err := assertRecords(AssertList, list, []map[string]any{{"name": "Arto Hellas"}})
	assert.ErrorContains(t, err, "Expected: 1 records")
	assert.ErrorContains(t, err, `{"id":"2","name":"Ada Lovelace"}`)

	err = assertRecords(AssertRemote, list, []map[string]any{
		{"name": "Ada Lovelace"}, {"name": "Arto Hellas"},
	})
	assert.ErrorContains(t, err, "Assertion failed: remote")
	assert.ErrorContains(t, err, "records[0]")

	err = assertRecords(AssertList, list, []map[string]any{{"name": 1.5}, {}})
	assert.ErrorContains(t, err, "records[0]")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: "list", Expected: "2 records", Actual: "1 records"}
	assert.Equal(t, "Assertion failed: list\n  Expected: 2 records\n  Actual: 1 records", err.Error())
}
