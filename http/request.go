package http

import (
	"net"

	"github.com/maker-web/maker/http/method"
	"github.com/maker-web/maker/http/proto"
	"github.com/maker-web/maker/http/url"
	"github.com/maker-web/maker/kv"
)

// Request is a parsed view over the connection's request buffer. None of its
// fields survive the request/response cycle: as soon as the response is
// written the buffer is reused, so a handler must never retain the request or
// anything reachable from it.
type Request struct {
	Method  method.Method
	URL     *url.URL
	Proto   proto.Proto
	Headers *kv.Storage
	// ContentLength is the declared body length; zero when there's no body.
	ContentLength int
	// Chunked is set when the body arrives chunk-encoded. The Body view below
	// holds the already decoded payload.
	Chunked bool
	// Connection keeps the raw Connection header token, e.g. "close" or
	// "keep-alive". Empty when the header wasn't sent.
	Connection string
	Body       []byte
	// KeptAlive09 marks an HTTP/0.9+ request that asked for persistence via
	// the /keep_alive/ target prefix.
	KeptAlive09 bool

	Remote net.Addr
	Local  net.Addr
}

func NewRequest(u *url.URL, headers *kv.Storage) *Request {
	return &Request{
		URL:     u,
		Headers: headers,
	}
}

// Reset prepares the request for the next cycle on the same connection. The
// addresses stay, everything else is dropped.
func (r *Request) Reset() {
	r.Method = ""
	r.URL.Reset()
	r.Proto = proto.Unknown
	r.Headers.Clear()
	r.ContentLength = 0
	r.Chunked = false
	r.Connection = ""
	r.Body = nil
	r.KeptAlive09 = false
}
