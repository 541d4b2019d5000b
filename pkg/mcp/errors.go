package mcp

// JSON-RPC error codes. The standard codes come from the JSON-RPC 2.0
// specification; the -320xx range carries gateway-specific conditions.
const (
	// ErrCodeParse and friends are the standard JSON-RPC codes.
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603

	// ErrCodeSessionNotFound is returned when a request names a session id
	// that does not exist or has been evicted.
	ErrCodeSessionNotFound = -32001

	// ErrCodeNotFound is returned for unknown tools, prompts, or resources.
	ErrCodeNotFound = -32002

	// ErrCodeDeadlineExceeded is returned when a sampling round trip times
	// out waiting for the client.
	ErrCodeDeadlineExceeded = -32003

	// ErrCodeTransportClosed is returned when the response channel goes away
	// while a round trip is outstanding.
	ErrCodeTransportClosed = -32004

	// ErrCodeUpstream is returned when the Reddit API rejects or fails a
	// request made on the caller's behalf.
	ErrCodeUpstream = -32005

	// ErrCodeAuthRequired is returned when an operation needs upstream
	// credentials and the session has none bound.
	ErrCodeAuthRequired = -32006
)
