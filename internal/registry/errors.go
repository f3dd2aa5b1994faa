package registry

import "errors"

// ErrSessionNotFound reports an unknown session id on a read path.
var ErrSessionNotFound = errors.New("session not found")

// ErrPageNotFound reports a page id that does not belong to the session.
var ErrPageNotFound = errors.New("page not found")
