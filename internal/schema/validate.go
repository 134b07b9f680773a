package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/listsync/internal/apperr"
	"github.com/roach88/listsync/internal/record"
)

// Validate checks submitted fields against the kind before any remote call.
//
// Checks, in order:
//   - every required field is present
//   - the unique field folds to a non-empty key
//   - the fields unify with the CUE schema and are concrete
//
// Failures are apperr VALIDATION errors so forms can show inline feedback.
func (k Kind) Validate(op string, fields record.Fields) error {
	for _, f := range k.Fields {
		if f.Optional {
			continue
		}
		if _, ok := fields[f.Name]; !ok {
			return apperr.Validation(op, "field %q is required", f.Name)
		}
	}

	if _, ok := record.KeyOf(fields, k.UniqueField); !ok {
		return apperr.Validation(op, "field %q must be a non-empty string", k.UniqueField)
	}

	if k.schema == nil {
		return nil
	}
	if err := k.schema.check(fields); err != nil {
		return apperr.Wrap(apperr.CodeValidation, op, "fields do not match kind "+k.Name, err)
	}
	return nil
}

func (s *fieldSchema) check(fields record.Fields) error {
	cueMu.Lock()
	defer cueMu.Unlock()

	data := make(map[string]any, len(fields))
	for name, v := range fields {
		data[name] = record.ToAny(v)
	}

	candidate := s.value.Context().Encode(data)
	if err := candidate.Err(); err != nil {
		return err
	}
	unified := s.value.Unify(candidate)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		if errs := errors.Errors(err); len(errs) > 0 {
			return fmt.Errorf("%s", errs[0].Error())
		}
		return err
	}
	return nil
}
