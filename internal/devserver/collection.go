package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/roach88/listsync/internal/apperr"
	"github.com/roach88/listsync/internal/record"
	"github.com/roach88/listsync/internal/schema"
)

// ownerField holds the creator of records of kinds that require auth.
const ownerField = "user"

var errNotUnique = errors.New("not unique")

// collection is the server side of one resource kind.
type collection struct {
	kind  schema.Kind
	items *Store[record.Record]

	// writeMu makes the uniqueness check and the write one step.
	writeMu sync.Mutex
}

func newCollection(k schema.Kind) *collection {
	return &collection{kind: k, items: NewStore[record.Record]()}
}

// insert adds fields under a new id after checking the unique field.
func (c *collection) insert(fields record.Fields) (record.Record, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.checkUnique("", fields); err != nil {
		return record.Record{}, err
	}
	rec := record.Record{ID: uuid.NewString(), Fields: fields.Clone()}
	c.items.Set(rec.ID, rec)
	return rec, nil
}

// replace overwrites the record with id, keeping its owner.
func (c *collection) replace(id string, fields record.Fields) (record.Record, bool, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	existing, ok := c.items.Get(id)
	if !ok {
		return record.Record{}, false, nil
	}
	if err := c.checkUnique(id, fields); err != nil {
		return record.Record{}, true, err
	}
	fields = fields.Clone()
	if owner, has := existing.Fields[ownerField]; has {
		fields[ownerField] = owner
	}
	rec := record.Record{ID: id, Fields: fields}
	c.items.Set(id, rec)
	return rec, true, nil
}

func (c *collection) checkUnique(selfID string, fields record.Fields) error {
	key, ok := record.KeyOf(fields, c.kind.UniqueField)
	if !ok {
		return nil
	}
	for _, r := range c.items.List() {
		if r.ID == selfID {
			continue
		}
		if k, ok := record.KeyOf(r.Fields, c.kind.UniqueField); ok && k == key {
			return fmt.Errorf("%s must be unique: %w", c.kind.UniqueField, errNotUnique)
		}
	}
	return nil
}

func (c *collection) handleList(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, c.items.List())
}

func (c *collection) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := c.items.Get(chi.URLParam(r, "id"))
	if !ok {
		Error(w, http.StatusNotFound, "unknown id")
		return
	}
	JSON(w, http.StatusOK, rec)
}

func (c *collection) handleCreate(w http.ResponseWriter, r *http.Request) {
	fields, ok := c.decode(w, r, "create")
	if !ok {
		return
	}
	if p, authed := PrincipalFrom(r.Context()); authed {
		fields[ownerField] = record.Object{
			"username": record.String(p.Username),
			"name":     record.String(p.Name),
		}
	}

	rec, err := c.insert(fields)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	JSON(w, http.StatusCreated, rec)
}

func (c *collection) handleUpdate(w http.ResponseWriter, r *http.Request) {
	fields, ok := c.decode(w, r, "update")
	if !ok {
		return
	}
	rec, found, err := c.replace(chi.URLParam(r, "id"), fields)
	switch {
	case !found:
		Error(w, http.StatusNotFound, "unknown id")
	case err != nil:
		Error(w, http.StatusBadRequest, err.Error())
	default:
		JSON(w, http.StatusOK, rec)
	}
}

func (c *collection) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	rec, ok := c.items.Get(id)
	if !ok {
		Error(w, http.StatusNotFound, "unknown id")
		return
	}
	if p, authed := PrincipalFrom(r.Context()); authed {
		if owner, has := rec.Fields[ownerField].(record.Object); has {
			if u, _ := owner["username"].(record.String); string(u) != p.Username {
				Error(w, http.StatusForbidden, "only the creator can delete this record")
				return
			}
		}
	}
	c.items.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

// decode reads and validates a request body. It writes the error response
// and returns ok=false on failure.
func (c *collection) decode(w http.ResponseWriter, r *http.Request, op string) (record.Fields, bool) {
	var in record.Record
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		Error(w, http.StatusBadRequest, "malformed request body")
		return nil, false
	}
	if in.Fields == nil {
		in.Fields = record.Fields{}
	}
	delete(in.Fields, ownerField)
	if err := c.kind.Validate(op, in.Fields); err != nil {
		var ae *apperr.Error
		msg := err.Error()
		if errors.As(err, &ae) {
			msg = ae.Message
			if ae.Err != nil {
				msg += ": " + ae.Err.Error()
			}
		}
		Error(w, http.StatusBadRequest, msg)
		return nil, false
	}
	return in.Fields, true
}
