// Package devserver is a reference implementation of the remote store.
//
// It serves one collection per resource kind plus the login endpoint:
//
//	GET    {path}        list
//	POST   {path}        create   -> 201 record
//	PUT    {path}/{id}   update   -> 200 record | 404
//	DELETE {path}/{id}   remove   -> 204 | 404
//	POST   /api/login    {username,password} -> {token,name,username} | 401
//
// Kinds that require auth reject mutations without a valid bearer token.
// Records are kept in memory in insertion order; unique fields are enforced
// case-insensitively, the same way the client checks them.
//
// The /admin endpoints reset state and inject faults for tests.
package devserver
