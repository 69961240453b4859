package method

import (
	"github.com/indigo-web/utils/uf"
)

// Method is an open token: anything the client sent before the first space is
// recorded verbatim, so protocol extensions on top of HTTP/0.9+ keep working.
// Well-known methods are interned to the constants below during parsing.
type Method string

const (
	GET     Method = "GET"
	HEAD    Method = "HEAD"
	POST    Method = "POST"
	PUT     Method = "PUT"
	DELETE  Method = "DELETE"
	CONNECT Method = "CONNECT"
	OPTIONS Method = "OPTIONS"
	TRACE   Method = "TRACE"
	PATCH   Method = "PATCH"
)

// New wraps a raw token. For well-known methods the returned value references
// static memory; otherwise it stays a view into the caller's buffer, following
// the usual view validity rules.
func New(raw []byte) Method {
	switch uf.B2S(raw) {
	case "GET":
		return GET
	case "HEAD":
		return HEAD
	case "POST":
		return POST
	case "PUT":
		return PUT
	case "DELETE":
		return DELETE
	case "CONNECT":
		return CONNECT
	case "OPTIONS":
		return OPTIONS
	case "TRACE":
		return TRACE
	case "PATCH":
		return PATCH
	default:
		return Method(uf.B2S(raw))
	}
}
