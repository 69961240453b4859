package http1

import (
	"strconv"

	"github.com/indigo-web/utils/strcomp"

	"github.com/maker-web/maker/config"
	"github.com/maker-web/maker/http"
	"github.com/maker-web/maker/http/method"
	"github.com/maker-web/maker/http/proto"
	"github.com/maker-web/maker/http/status"
	"github.com/maker-web/maker/internal/transport"
)

// Serializer renders responses into a staging buffer and transmits them in a
// single write. The buffer starts at the configured size and may grow while
// rendering, but never past the hard cap: a response that doesn't fit is
// reported to the caller instead of being truncated or sent partially.
type Serializer struct {
	buff        []byte
	bodyScratch []byte
	buffSize    int
	maxBuffSize int
}

func NewSerializer(cfg config.Response) *Serializer {
	return &Serializer{
		buff:        make([]byte, 0, cfg.BufferSize),
		buffSize:    cfg.BufferSize,
		maxBuffSize: cfg.MaxBufferSize,
	}
}

// Write renders the response according to the protocol the request came in
// with and sends it. keepAlive is the already made decision about the
// connection's fate, affecting only the Connection header rendered.
func (s *Serializer) Write(
	target proto.Proto, request *http.Request, response *http.Response, keepAlive bool, writer transport.Writer,
) (err error) {
	defer s.clear()

	fields := response.Reveal()
	body := s.resolveBody(fields)

	if target == proto.HTTP09 {
		// the pre-header protocol: the payload goes as-is
		s.buff = append(s.buff, body...)
		return s.flush(writer)
	}

	s.renderProtocol(target)
	s.renderResponseLine(fields)
	s.renderHeaders(fields)
	s.renderConnection(target, keepAlive, fields)
	s.renderContentLength(len(body))
	s.crlf()

	if request.Method != method.HEAD {
		// HEAD responses mirror GET ones, except the body is forcibly absent
		s.buff = append(s.buff, body...)
	}

	return s.flush(writer)
}

func (s *Serializer) flush(writer transport.Writer) error {
	if len(s.buff) > s.maxBuffSize {
		return status.ErrResponseTooLarge
	}

	return writer.Write(s.buff)
}

func (s *Serializer) resolveBody(fields http.Fields) []byte {
	if fields.BodyWriter == nil {
		return fields.Body
	}

	s.bodyScratch = fields.BodyWriter(s.bodyScratch[:0])

	return s.bodyScratch
}

func (s *Serializer) renderProtocol(target proto.Proto) {
	s.buff = append(s.buff, target.String()...)
	s.sp()
}

func (s *Serializer) renderResponseLine(fields http.Fields) {
	s.buff = strconv.AppendInt(s.buff, int64(fields.Code), 10)
	s.sp()

	text := fields.Status
	if text == "" {
		text = string(status.Text(fields.Code))
	}

	s.buff = append(s.buff, text...)
	s.crlf()
}

func (s *Serializer) renderHeaders(fields http.Fields) {
	for _, header := range fields.Headers {
		s.buff = append(s.buff, header.Key...)
		s.colonsp()
		s.buff = append(s.buff, header.Value...)
		s.crlf()
	}
}

// renderConnection injects the Connection header where the protocol's default
// disagrees with the decision made, unless the handler already set one.
func (s *Serializer) renderConnection(target proto.Proto, keepAlive bool, fields http.Fields) {
	for _, header := range fields.Headers {
		if strcomp.EqualFold(header.Key, "connection") {
			return
		}
	}

	switch {
	case target == proto.HTTP11 && !keepAlive:
		s.buff = append(s.buff, "connection: close\r\n"...)
	case target == proto.HTTP10 && keepAlive:
		s.buff = append(s.buff, "connection: keep-alive\r\n"...)
	}
}

func (s *Serializer) renderContentLength(length int) {
	s.buff = append(s.buff, "content-length: "...)
	s.buff = strconv.AppendInt(s.buff, int64(length), 10)
	s.crlf()
}

func (s *Serializer) sp() {
	s.buff = append(s.buff, ' ')
}

func (s *Serializer) colonsp() {
	s.buff = append(s.buff, ':', ' ')
}

func (s *Serializer) crlf() {
	s.buff = append(s.buff, '\r', '\n')
}

// clear applies the reset rule: a buffer that grew past the cap while
// rendering an oversized response is re-allocated back to its initial size,
// otherwise it's reused as is.
func (s *Serializer) clear() {
	if cap(s.buff) > s.maxBuffSize {
		s.buff = make([]byte, 0, s.buffSize)
	} else {
		s.buff = s.buff[:0]
	}
}

// IsKeepAlive derives the request's own wish for connection persistence.
// Ceilings like max requests per connection are the caller's business.
func IsKeepAlive(target proto.Proto, request *http.Request) bool {
	switch target {
	case proto.HTTP09:
		return request.KeptAlive09
	case proto.HTTP10:
		return strcomp.EqualFold(request.Connection, "keep-alive")
	case proto.HTTP11:
		return !strcomp.EqualFold(request.Connection, "close")
	default:
		return false
	}
}
