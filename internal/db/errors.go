package db

// Op names used for error context.
const (
	OpSearch  = "search"
	OpBulk    = "bulk"
	OpPing    = "ping"
	OpFetch   = "fetch_batch"
	OpHGetAll = "HGETALL"
	OpSelect  = "SELECT"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
