package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/listsync/internal/notify"
	"github.com/roach88/listsync/internal/record"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the harness state.
// Returns one message per failed assertion.
func EvaluateAssertions(h *Harness, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertList:
			err = assertRecords(AssertList, h.engine.Records(), a.Records)
		case AssertRemote:
			err = assertRecords(AssertRemote, h.remote.Records(), a.Records)
		case AssertNotification:
			err = assertNotification(h.center, a.Text)
		case AssertRemoteCalls:
			if got := h.remote.CallCount(a.Method); got != a.Count {
				err = &AssertionError{
					Type:     AssertRemoteCalls,
					Expected: fmt.Sprintf("%d %s calls", a.Count, a.Method),
					Actual:   fmt.Sprintf("%d calls", got),
				}
			}
		case AssertNoticeCount:
			if got := h.noticeCount(notify.Kind(a.Kind)); got != a.Count {
				err = &AssertionError{
					Type:     AssertNoticeCount,
					Expected: fmt.Sprintf("%d %s notifications", a.Count, a.Kind),
					Actual:   fmt.Sprintf("%d notifications", got),
				}
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertRecords checks list length and a subset match of each record's
// fields, in order.
func assertRecords(typ string, got []record.Record, want []map[string]any) error {
	if len(got) != len(want) {
		return &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("%d records", len(want)),
			Actual:   fmt.Sprintf("%d records: %s", len(got), describe(got)),
		}
	}
	for i, raw := range want {
		fields, err := fieldsFromYAML(raw)
		if err != nil {
			return fmt.Errorf("%s: records[%d]: %w", typ, i, err)
		}
		if !matchFields(got[i].Fields, fields) {
			return &AssertionError{
				Type:     typ,
				Expected: fmt.Sprintf("records[%d] with %v", i, fields),
				Actual:   fmt.Sprintf("%v", got[i].Fields),
			}
		}
	}
	return nil
}

func assertNotification(c *notify.Center, text string) error {
	n, ok := c.Current()
	switch {
	case text == "" && ok:
		return &AssertionError{Type: AssertNotification, Expected: "no notification", Actual: fmt.Sprintf("%q", n.Text)}
	case text != "" && !ok:
		return &AssertionError{Type: AssertNotification, Expected: fmt.Sprintf("%q", text), Actual: "no notification"}
	case text != "" && n.Text != text:
		return &AssertionError{Type: AssertNotification, Expected: fmt.Sprintf("%q", text), Actual: fmt.Sprintf("%q", n.Text)}
	}
	return nil
}

// matchFields reports whether actual contains every field of expected with
// an equal value. Extra fields in actual are fine.
func matchFields(actual, expected record.Fields) bool {
	for k, want := range expected {
		got, ok := actual[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func describe(list []record.Record) string {
	parts := make([]string, len(list))
	for i, r := range list {
		b, err := record.MarshalCanonical(r)
		if err != nil {
			parts[i] = fmt.Sprintf("%v", r.Fields)
			continue
		}
		parts[i] = string(b)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
