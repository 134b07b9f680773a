package record

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// FoldKey returns the comparison form of a uniqueKey: NFC-normalized,
// Unicode case folded, surrounding whitespace trimmed.
//
// Every duplicate check and every key lookup goes through FoldKey so
// "Ada", "ada" and "ADA" are one identity everywhere.
func FoldKey(s string) string {
	folder := cases.Fold()
	return folder.String(norm.NFC.String(strings.TrimSpace(s)))
}

// KeyOf returns the folded uniqueKey of fields for the given unique field.
// ok is false when the field is absent, not a string, or blank.
func KeyOf(f Fields, uniqueField string) (key string, ok bool) {
	v, present := f[uniqueField]
	if !present {
		return "", false
	}
	s, isString := v.(String)
	if !isString {
		return "", false
	}
	key = FoldKey(string(s))
	return key, key != ""
}

// FindByKey returns the first record whose folded unique field equals key.
func FindByKey(list []Record, uniqueField, key string) (Record, bool) {
	for _, r := range list {
		if k, ok := KeyOf(r.Fields, uniqueField); ok && k == key {
			return r, true
		}
	}
	return Record{}, false
}
