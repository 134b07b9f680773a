package schema

import (
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// FieldType is the declared type of a kind field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeBool   FieldType = "bool"
	TypeList   FieldType = "list"
	TypeObject FieldType = "object"
	TypeAny    FieldType = "any"
)

// Field describes one declared field of a kind.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Optional bool      `json:"optional,omitempty"`
}

// Kind is a compiled resource kind definition.
type Kind struct {
	Name         string  `json:"name"`
	Path         string  `json:"path"`
	UniqueField  string  `json:"unique"`
	CounterField string  `json:"counter,omitempty"`
	RankField    string  `json:"rank,omitempty"`
	RequiresAuth bool    `json:"auth,omitempty"`
	Fields       []Field `json:"fields"`

	schema *fieldSchema
}

// fieldSchema holds the CUE value used for validation.
type fieldSchema struct {
	value cue.Value
}

// cueMu serializes validation. Kinds loaded together share one CUE runtime,
// which is not safe for concurrent use.
var cueMu sync.Mutex

// Field returns the declared field with the given name.
func (k Kind) Field(name string) (Field, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// CompileError is a kind definition error with CUE position info.
type CompileError struct {
	Kind    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	prefix := e.Field
	if e.Kind != "" {
		prefix = e.Kind + "." + e.Field
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Compile parses a CUE value into a Kind.
//
// The value should be the kind struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`kind: contacts: { ... }`)
//	k, err := Compile(v.LookupPath(cue.ParsePath("kind.contacts")))
func Compile(v cue.Value) (*Kind, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	k := &Kind{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		k.Name = labels[len(labels)-1].String()
	}

	var err error
	if k.Path, err = requiredString(v, k.Name, "path"); err != nil {
		return nil, err
	}
	if k.UniqueField, err = requiredString(v, k.Name, "unique"); err != nil {
		return nil, err
	}
	if k.CounterField, err = optionalString(v, "counter"); err != nil {
		return nil, err
	}
	if k.RankField, err = optionalString(v, "rank"); err != nil {
		return nil, err
	}

	if authVal := v.LookupPath(cue.ParsePath("auth")); authVal.Exists() {
		auth, err := authVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		k.RequiresAuth = auth
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{Kind: k.Name, Field: "fields", Message: "fields are required", Pos: v.Pos()}
	}
	if k.Fields, err = parseFields(fieldsVal, k.Name); err != nil {
		return nil, err
	}
	k.schema = &fieldSchema{value: fieldsVal}

	if err := k.checkReferences(v.Pos()); err != nil {
		return nil, err
	}
	return k, nil
}

// checkReferences verifies unique/counter/rank name declared fields of the
// right type.
func (k *Kind) checkReferences(pos token.Pos) error {
	unique, ok := k.Field(k.UniqueField)
	if !ok {
		return &CompileError{Kind: k.Name, Field: "unique", Message: fmt.Sprintf("unique field %q is not declared", k.UniqueField), Pos: pos}
	}
	if unique.Type != TypeString {
		return &CompileError{Kind: k.Name, Field: "unique", Message: fmt.Sprintf("unique field %q must be a string", k.UniqueField), Pos: pos}
	}
	if unique.Optional {
		return &CompileError{Kind: k.Name, Field: "unique", Message: fmt.Sprintf("unique field %q must not be optional", k.UniqueField), Pos: pos}
	}

	for label, name := range map[string]string{"counter": k.CounterField, "rank": k.RankField} {
		if name == "" {
			continue
		}
		f, ok := k.Field(name)
		if !ok {
			return &CompileError{Kind: k.Name, Field: label, Message: fmt.Sprintf("%s field %q is not declared", label, name), Pos: pos}
		}
		if f.Type != TypeInt {
			return &CompileError{Kind: k.Name, Field: label, Message: fmt.Sprintf("%s field %q must be an int", label, name), Pos: pos}
		}
	}
	return nil
}

func parseFields(v cue.Value, kindName string) ([]Field, error) {
	iter, err := v.Fields(cue.Optional(true))
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []Field
	for iter.Next() {
		name := iter.Label()
		typ, err := mapKind(iter.Value())
		if err != nil {
			return nil, &CompileError{Kind: kindName, Field: "fields." + name, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		fields = append(fields, Field{Name: name, Type: typ, Optional: iter.IsOptional()})
	}
	if len(fields) == 0 {
		return nil, &CompileError{Kind: kindName, Field: "fields", Message: "at least one field is required", Pos: v.Pos()}
	}

	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields, nil
}

// mapKind maps a CUE value's incomplete kind to a FieldType.
// Floats are rejected: record values never carry them.
func mapKind(v cue.Value) (FieldType, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return TypeString, nil
	case cue.IntKind:
		return TypeInt, nil
	case cue.BoolKind:
		return TypeBool, nil
	case cue.ListKind:
		return TypeList, nil
	case cue.StructKind:
		return TypeObject, nil
	case cue.TopKind:
		return TypeAny, nil
	case cue.FloatKind, cue.NumberKind:
		return "", fmt.Errorf("float fields are not supported, use int")
	default:
		return "", fmt.Errorf("unsupported type kind: %v", v.IncompleteKind())
	}
}

func requiredString(v cue.Value, kindName, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Kind: kindName, Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if s == "" {
		return "", &CompileError{Kind: kindName, Field: field, Message: field + " must not be empty", Pos: fv.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
