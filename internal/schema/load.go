package schema

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed kinds.cue
var builtinSource []byte

// Builtin returns the embedded contacts and blogs kinds.
func Builtin() ([]Kind, error) {
	return Load(builtinSource, "kinds.cue")
}

// LoadFile compiles kinds from a CUE file on disk.
func LoadFile(path string) ([]Kind, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read kinds file: %w", err)
	}
	return Load(data, path)
}

// Load compiles every kind under the top-level "kind" struct of src.
// Kinds are returned in declaration order. Fails fast on the first error.
func Load(src []byte, filename string) ([]Kind, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	kindsVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindsVal.Exists() {
		return nil, &CompileError{Field: "kind", Message: "no kinds defined"}
	}

	iter, err := kindsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var kinds []Kind
	for iter.Next() {
		k, err := Compile(iter.Value())
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, *k)
	}
	if len(kinds) == 0 {
		return nil, &CompileError{Field: "kind", Message: "no kinds defined"}
	}
	return kinds, nil
}

// Find returns the kind with the given name.
func Find(kinds []Kind, name string) (Kind, bool) {
	for _, k := range kinds {
		if k.Name == name {
			return k, true
		}
	}
	return Kind{}, false
}

// MustBuiltin returns a built-in kind by name and panics if it is missing.
// Intended for tests and wiring code where the embedded source is trusted.
func MustBuiltin(name string) Kind {
	kinds, err := Builtin()
	if err != nil {
		panic(fmt.Sprintf("schema: builtin kinds: %v", err))
	}
	k, ok := Find(kinds, name)
	if !ok {
		panic(fmt.Sprintf("schema: no builtin kind %q", name))
	}
	return k
}
