// Package record defines the list resource managed by the sync engine.
//
// A Record is a server-identified set of typed fields. Field values are a
// sealed set of types (Null, String, Int, Bool, List, Object) so that
// records decoded from the remote store never carry floats or arbitrary Go
// values.
//
// # Identity
//
// Records have two identities:
//   - ID: opaque, server-assigned, empty before creation
//   - uniqueKey: the value of the kind's unique field, compared after
//     FoldKey (NFC + Unicode case folding)
//
// The sync engine relies on FoldKey for every duplicate check, so two
// records whose unique fields differ only in case are the same entry.
//
// # Ordering
//
// Lists keep insertion order. Ranked produces a display-only ordering and
// never feeds back into the canonical list.
package record
