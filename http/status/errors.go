package status

// HTTPError carries, next to the human-readable message, the HTTP code the
// error renders with and a stable machine-readable reason token used in
// structured error bodies. Errors are compared by identity in the hot path,
// so always use the predefined values below where one fits.
type HTTPError struct {
	Message string
	Code    Code
	Reason  string
}

func NewError(code Code, reason, message string) error {
	return HTTPError{
		Code:    code,
		Reason:  reason,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	// request line and header parsing
	ErrMalformedMethod      = NewError(BadRequest, "INVALID_METHOD", "invalid HTTP method")
	ErrDoubleSlash          = NewError(BadRequest, "DOUBLE_SLASH", "consecutive slashes in request target")
	ErrBadURL               = NewError(BadRequest, "INVALID_URL", "invalid request target")
	ErrBadQuery             = NewError(BadRequest, "INVALID_QUERY", "invalid query string")
	ErrInvalidEncoding      = NewError(BadRequest, "INVALID_ENCODING", "request is not valid UTF-8")
	ErrMalformedRequestLine = NewError(BadRequest, "MALFORMED_REQUEST_LINE", "malformed request line")
	ErrMalformedHeader      = NewError(BadRequest, "MALFORMED_HEADER", "malformed header line")
	ErrBadContentLength     = NewError(BadRequest, "INVALID_CONTENT_LENGTH", "invalid Content-Length value")
	ErrBadChunk             = NewError(BadRequest, "INVALID_BODY", "malformed chunk-encoded data")
	ErrBadVersion           = NewError(BadRequest, "INVALID_VERSION", "malformed protocol version")
	ErrUnsupportedVersion   = NewError(HTTPVersionNotSupported, "UNSUPPORTED_VERSION", "HTTP version not supported")

	// limits
	ErrURLTooLong          = NewError(RequestURITooLong, "URL_TOO_LONG", "request target is too long")
	ErrQueryTooLong        = NewError(RequestURITooLong, "QUERY_TOO_LONG", "query string is too long")
	ErrTooManyHeaders      = NewError(HeaderFieldsTooLarge, "TOO_MANY_HEADERS", "too many headers")
	ErrHeaderFieldTooLarge = NewError(HeaderFieldsTooLarge, "HEADER_TOO_LARGE", "header field is too large")
	ErrBodyTooLarge        = NewError(RequestEntityTooLarge, "BODY_TOO_LARGE", "request body is too large")
	ErrTooManyConnections  = NewError(ServiceUnavailable, "SERVICE_UNAVAILABLE", "service temporarily unavailable")
	ErrPendingQueueFull    = NewError(ServiceUnavailable, "SERVICE_UNAVAILABLE", "service temporarily unavailable")
	ErrResponseTooLarge    = NewError(InternalServerError, "RESPONSE_TOO_LARGE", "response exceeds the staging buffer")

	// connection fate
	ErrFilterRejected = NewError(Forbidden, "FORBIDDEN", "connection rejected")
	ErrIO             = NewError(InternalServerError, "IO_ERROR", "i/o failure")
	ErrReadTimeout    = NewError(RequestTimeout, "READ_TIMEOUT", "read timed out")
	ErrIdleTimeout    = NewError(RequestTimeout, "IDLE_TIMEOUT", "idle connection timed out")

	// shutdown sentinels, never rendered
	ErrShutdown         = NewError(ServiceUnavailable, "SHUTDOWN", "shutdown")
	ErrGracefulShutdown = NewError(ServiceUnavailable, "SHUTDOWN", "graceful shutdown")
)

// Renderable lists every error the formatter pre-renders a response for.
var Renderable = []error{
	ErrMalformedMethod,
	ErrDoubleSlash,
	ErrBadURL,
	ErrBadQuery,
	ErrInvalidEncoding,
	ErrMalformedRequestLine,
	ErrMalformedHeader,
	ErrBadContentLength,
	ErrBadChunk,
	ErrBadVersion,
	ErrUnsupportedVersion,
	ErrURLTooLong,
	ErrQueryTooLong,
	ErrTooManyHeaders,
	ErrHeaderFieldTooLarge,
	ErrBodyTooLarge,
	ErrTooManyConnections,
	ErrPendingQueueFull,
	ErrResponseTooLarge,
	ErrFilterRejected,
	ErrIO,
}
