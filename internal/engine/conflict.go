package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/listsync/internal/apperr"
	"github.com/roach88/listsync/internal/record"
)

// Conflict is a create whose uniqueKey already names a record in the list.
// It is the state carried across the user's confirmation decision.
type Conflict struct {
	Existing    record.Record
	Proposed    record.Fields
	UniqueField string
}

// Key returns the display key of the existing record.
func (c *Conflict) Key() string {
	return c.Existing.Fields.Text(c.UniqueField)
}

// Prompt is the confirmation question shown to the user.
func (c *Conflict) Prompt() string {
	return fmt.Sprintf("%s is already added to the list, replace the old record with a new one?", c.Key())
}

// Merged returns the fields a confirmed replacement sends: the proposed
// fields with the existing record's unique value, so its casing survives.
func (c *Conflict) Merged() record.Fields {
	out := c.Proposed.Clone()
	if out == nil {
		out = record.Fields{}
	}
	if v, ok := c.Existing.Fields[c.UniqueField]; ok {
		out[c.UniqueField] = v
	}
	return out
}

// ConflictOf extracts the Conflict carried by a CONFLICT_DETECTED error.
func ConflictOf(err error) (*Conflict, bool) {
	if err == nil {
		return nil, false
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Code != apperr.CodeConflict {
		return nil, false
	}
	c, ok := ae.Detail.(*Conflict)
	return c, ok
}

func conflictError(op string, c *Conflict) error {
	err := apperr.New(apperr.CodeConflict, op, c.Key()+" is already in the list")
	err.RecordID = c.Existing.ID
	err.Detail = c
	return err
}
