package api

// ResultCode mirrors the server result-code vocabulary (§7). Only the
// codes the retry/connection-disposition logic in this core needs to
// recognize by name are enumerated; any other value is carried through
// as an opaque application error.
type ResultCode int

const (
	ResultOK                   ResultCode = 0
	ResultServerError          ResultCode = 1
	ResultKeyNotFound          ResultCode = 2
	ResultGenerationError      ResultCode = 3
	ResultParameterError       ResultCode = 4
	ResultKeyExists            ResultCode = 5
	ResultBinExists            ResultCode = 6
	ResultClusterKeyMismatch   ResultCode = 7
	ResultServerMemError       ResultCode = 8
	ResultTimeout              ResultCode = 9
	ResultAlwaysForbidden      ResultCode = 10
	ResultUnsupportedFeature   ResultCode = 16
	ResultKeyBusy              ResultCode = 14
	ResultDeviceOverload       ResultCode = 18
	ResultKeyMismatch          ResultCode = 19
	ResultInvalidNamespace     ResultCode = 20
	ResultServerNotAvailable   ResultCode = 24
)

// KeepConnection reports whether the connection that produced this
// well-formed application result should be returned to the pool rather
// than closed (§7 "Application errors ... connection is returned or
// closed according to KeepConnection(code)").
func (c ResultCode) KeepConnection() bool {
	switch c {
	case ResultServerNotAvailable:
		return false
	default:
		return true
	}
}

// IsServerTransient reports the server-retry class (§4.5): the server
// itself answered, but the answer says "try again", so the connection is
// healthy and goes back to the pool.
func (c ResultCode) IsServerTransient() bool {
	switch c {
	case ResultTimeout, ResultDeviceOverload:
		return true
	default:
		return false
	}
}
