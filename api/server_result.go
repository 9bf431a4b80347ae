package api

import "fmt"

// ServerResult is returned by a command Delegate's ParseResponse when the
// response was well-formed but carries a non-OK server result code. It
// lets the command engine apply §4.5/§7's retry-class rules (server
// transient, key-busy, application) without the Delegate having to know
// about retry policy itself.
type ServerResult struct {
	Code ResultCode
}

func (r *ServerResult) Error() string {
	return fmt.Sprintf("server result code %d", r.Code)
}
