package engine

import (
	"github.com/roach88/listsync/internal/apperr"
	"github.com/roach88/listsync/internal/remote"
)

// classify maps a remote failure onto the error taxonomy.
// 401/403 are AUTHENTICATION_FAILED; 404 is STALE_RESOURCE only when
// staleOnNotFound is set (update); everything else is TRANSPORT.
func classify(op, id string, err error, staleOnNotFound bool) error {
	code := apperr.CodeTransport
	msg := "remote call failed"
	switch {
	case remote.IsUnauthorized(err):
		code = apperr.CodeAuthFailed
		msg = "token missing or rejected"
	case staleOnNotFound && remote.IsNotFound(err):
		code = apperr.CodeStale
		msg = "record no longer exists on the server"
	}
	e := apperr.Wrap(code, op, msg, err)
	e.RecordID = id
	return e
}

func reason(err error) string {
	return remote.Reason(err)
}
