package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/listsync/internal/record"
	"github.com/roach88/listsync/internal/schema"
)

// parseAssignments reads name=value arguments. Values of declared int and
// bool fields are parsed strictly; declared strings are taken verbatim.
func parseAssignments(k schema.Kind, args []string) (record.Fields, error) {
	out := make(record.Fields, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("expected field=value, got %q", arg))
		}
		if name == record.IDField {
			return nil, NewExitError(ExitCommandError, "id is assigned by the server")
		}
		v, err := parseValue(k, name, raw)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("field %q", name), err)
		}
		out[name] = v
	}
	return out, nil
}

func parseValue(k schema.Kind, name, raw string) (record.Value, error) {
	f, declared := k.Field(name)
	if !declared {
		return record.ParseScalar(raw), nil
	}
	switch f.Type {
	case schema.TypeString:
		return record.String(raw), nil
	case schema.TypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return record.Int(n), nil
	case schema.TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", raw)
		}
		return record.Bool(b), nil
	default:
		return record.ParseScalar(raw), nil
	}
}

// columns orders a kind's fields for display: the unique field first.
func columns(k schema.Kind) []string {
	cols := []string{k.UniqueField}
	for _, f := range k.Fields {
		if f.Name != k.UniqueField {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

func rows(k schema.Kind, list []record.Record) [][]string {
	cols := columns(k)
	out := make([][]string, len(list))
	for i, r := range list {
		row := make([]string, 0, len(cols)+1)
		row = append(row, r.ID)
		for _, c := range cols {
			row = append(row, r.Fields.Text(c))
		}
		out[i] = row
	}
	return out
}

// confirm asks a yes/no question on w and reads the answer from r.
// Anything but y or yes, including end of input, is a no.
func confirm(r io.Reader, w io.Writer, question string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N] ", question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
