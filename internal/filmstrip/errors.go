package filmstrip

import "errors"

// Extraction failure taxonomy. Security blocks are surfaced distinctly
// from generic network failures so the UI can explain "blocked for
// security" rather than "broken file".
var (
	ErrSecurityBlocked = errors.New("frame extraction blocked by security policy")
	ErrNetwork         = errors.New("network error during frame extraction")
	ErrDecode          = errors.New("failed to decode media")
	ErrUnsupported     = errors.New("media source unsupported")
	ErrAborted         = errors.New("frame extraction aborted")
	ErrTimeout         = errors.New("frame extraction timed out")
)
