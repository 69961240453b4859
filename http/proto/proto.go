package proto

type Proto uint8

const (
	Unknown Proto = iota
	HTTP09
	HTTP10
	HTTP11
)

// Choose returns the protocol for a version token of the request line. The
// token excludes the line break, e.g. "HTTP/1.1". Tokens shaped like an HTTP
// version but naming an unsupported one yield Unknown with wellFormed=true,
// so the caller can distinguish 505 from 400.
func Choose(token string) (p Proto, wellFormed bool) {
	switch token {
	case "HTTP/1.1":
		return HTTP11, true
	case "HTTP/1.0":
		return HTTP10, true
	case "HTTP/0.9":
		return HTTP09, true
	}

	if len(token) == 8 &&
		token[:5] == "HTTP/" &&
		isDigit(token[5]) && token[6] == '.' && isDigit(token[7]) {
		return Unknown, true
	}

	return Unknown, false
}

func (p Proto) String() string {
	switch p {
	case HTTP09:
		return "HTTP/0.9"
	case HTTP10:
		return "HTTP/1.0"
	case HTTP11:
		return "HTTP/1.1"
	default:
		return "unknown"
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
