package status

type (
	Code   uint16
	Status string
)

// Subset of the IANA registry that the engine can actually produce or that a
// handler is likely to want. See net/http/status.go for the full table.
const (
	Continue           Code = 100
	SwitchingProtocols Code = 101

	OK             Code = 200
	Created        Code = 201
	Accepted       Code = 202
	NoContent      Code = 204
	PartialContent Code = 206

	MovedPermanently  Code = 301
	Found             Code = 302
	SeeOther          Code = 303
	NotModified       Code = 304
	TemporaryRedirect Code = 307
	PermanentRedirect Code = 308

	BadRequest            Code = 400
	Unauthorized          Code = 401
	Forbidden             Code = 403
	NotFound              Code = 404
	MethodNotAllowed      Code = 405
	NotAcceptable         Code = 406
	RequestTimeout        Code = 408
	Conflict              Code = 409
	Gone                  Code = 410
	LengthRequired        Code = 411
	PreconditionFailed    Code = 412
	RequestEntityTooLarge Code = 413
	RequestURITooLong     Code = 414
	UnsupportedMediaType  Code = 415
	Teapot                Code = 418
	UnprocessableEntity   Code = 422
	TooManyRequests       Code = 429
	HeaderFieldsTooLarge  Code = 431

	InternalServerError     Code = 500
	NotImplemented          Code = 501
	BadGateway              Code = 502
	ServiceUnavailable      Code = 503
	GatewayTimeout          Code = 504
	HTTPVersionNotSupported Code = 505
)

// Text returns the reason phrase for the code, or the empty string if the
// code is unknown.
func Text(code Code) Status {
	switch code {
	case Continue:
		return "Continue"
	case SwitchingProtocols:
		return "Switching Protocols"
	case OK:
		return "OK"
	case Created:
		return "Created"
	case Accepted:
		return "Accepted"
	case NoContent:
		return "No Content"
	case PartialContent:
		return "Partial Content"
	case MovedPermanently:
		return "Moved Permanently"
	case Found:
		return "Found"
	case SeeOther:
		return "See Other"
	case NotModified:
		return "Not Modified"
	case TemporaryRedirect:
		return "Temporary Redirect"
	case PermanentRedirect:
		return "Permanent Redirect"
	case BadRequest:
		return "Bad Request"
	case Unauthorized:
		return "Unauthorized"
	case Forbidden:
		return "Forbidden"
	case NotFound:
		return "Not Found"
	case MethodNotAllowed:
		return "Method Not Allowed"
	case NotAcceptable:
		return "Not Acceptable"
	case RequestTimeout:
		return "Request Timeout"
	case Conflict:
		return "Conflict"
	case Gone:
		return "Gone"
	case LengthRequired:
		return "Length Required"
	case PreconditionFailed:
		return "Precondition Failed"
	case RequestEntityTooLarge:
		return "Request Entity Too Large"
	case RequestURITooLong:
		return "Request URI Too Long"
	case UnsupportedMediaType:
		return "Unsupported Media Type"
	case Teapot:
		return "I'm a teapot"
	case UnprocessableEntity:
		return "Unprocessable Entity"
	case TooManyRequests:
		return "Too Many Requests"
	case HeaderFieldsTooLarge:
		return "Request Header Fields Too Large"
	case InternalServerError:
		return "Internal Server Error"
	case NotImplemented:
		return "Not Implemented"
	case BadGateway:
		return "Bad Gateway"
	case ServiceUnavailable:
		return "Service Unavailable"
	case GatewayTimeout:
		return "Gateway Timeout"
	case HTTPVersionNotSupported:
		return "HTTP Version Not Supported"
	default:
		return ""
	}
}

// CodeStatus returns the full status line tail, e.g. "200 OK", for codes the
// engine renders itself.
func CodeStatus(code Code) string {
	switch code {
	case BadRequest:
		return "400 Bad Request"
	case Forbidden:
		return "403 Forbidden"
	case RequestEntityTooLarge:
		return "413 Request Entity Too Large"
	case RequestURITooLong:
		return "414 Request URI Too Long"
	case HeaderFieldsTooLarge:
		return "431 Request Header Fields Too Large"
	case InternalServerError:
		return "500 Internal Server Error"
	case ServiceUnavailable:
		return "503 Service Unavailable"
	case HTTPVersionNotSupported:
		return "505 HTTP Version Not Supported"
	default:
		return ""
	}
}
