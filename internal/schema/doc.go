// Package schema compiles resource kind definitions from CUE.
//
// A kind describes one remote list resource:
//
//	kind: contacts: {
//		path:   "/api/persons"     // collection path on the remote store
//		unique: "name"             // field whose folded value is the uniqueKey
//		counter: "likes"           // optional Int field incremented by Like
//		rank:    "likes"           // optional Int field for display ordering
//		auth:    true              // mutations require a session token
//		fields: {
//			name:   string & !=""
//			number: string & !=""
//		}
//	}
//
// The fields struct doubles as the validation schema: submitted fields are
// unified with it and must be concrete, so required fields, types and value
// constraints are all checked by CUE before any remote call.
//
// The built-in kinds (contacts, blogs) are embedded from kinds.cue.
package schema
