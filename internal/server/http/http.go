package http

import (
	"time"

	"github.com/maker-web/maker/config"
	"github.com/maker-web/maker/http"
	"github.com/maker-web/maker/http/proto"
	"github.com/maker-web/maker/http/status"
	"github.com/maker-web/maker/internal/server/tcp"
	"github.com/maker-web/maker/internal/transport"
	"github.com/maker-web/maker/internal/transport/http1"
)

// Server drives a single connection through the read/parse/dispatch/write
// cycle until something decides the connection is done: the client, a parse
// error, a timeout, a ceiling, or the handler itself. One Server instance
// serves one connection at a time and is reused between connections together
// with its buffers, so a running engine allocates nothing per request.
type Server struct {
	cfg        *config.Config
	handler    http.Handler
	formatter  *http1.Formatter
	parser     *http1.Parser
	serializer *http1.Serializer
	request    *http.Request
	response   *http.Response
	conn       *http.Connection
	client     tcp.Client
	started    time.Time
}

func NewServer(
	cfg *config.Config,
	handler http.Handler,
	formatter *http1.Formatter,
	parser *http1.Parser,
	serializer *http1.Serializer,
	request *http.Request,
	response *http.Response,
) *Server {
	return &Server{
		cfg:        cfg,
		handler:    handler,
		formatter:  formatter,
		parser:     parser,
		serializer: serializer,
		request:    request,
		response:   response,
		conn:       new(http.Connection),
	}
}

// Run serves the connection to completion. data is the user's
// connection-scoped value, already initialized.
func (s *Server) Run(client tcp.Client, data any) {
	s.client = client
	s.started = time.Now()
	s.conn.Remote = client.Remote()
	s.conn.Local = client.Local()
	s.conn.Data = data
	s.request.Remote = s.conn.Remote
	s.request.Local = s.conn.Local

	for s.handleRequest() {
	}

	_ = client.Close()
	s.reset()
}

func (s *Server) handleRequest() bool {
	if s.parser.Pristine() && s.conn.Requests > 0 {
		s.client.SetReadTimeout(s.cfg.Connection.IdleTimeout)
	} else {
		s.client.SetReadTimeout(s.cfg.Connection.ReadTimeout)
	}

	data, err := s.client.Read()
	if err != nil {
		// the peer is gone or stopped talking; there's nobody to respond to
		return false
	}

	state, extra, err := s.parser.Parse(data)
	switch state {
	case transport.Pending:
		return true
	case transport.Error:
		_ = s.client.Write(s.formatter.Render(s.request.Proto, err))
		return false
	case transport.RequestCompleted:
		s.client.Unread(extra)
		return s.dispatch()
	default:
		panic("BUG: unexpected request state")
	}
}

func (s *Server) dispatch() bool {
	s.conn.Requests++

	action := s.handler.Handle(s.conn, s.request, s.response)
	if action == http.CloseSilently {
		return false
	}

	keepAlive := action == http.Respond &&
		http1.IsKeepAlive(s.request.Proto, s.request) &&
		s.withinCeilings()

	err := s.serializer.Write(s.request.Proto, s.request, s.response, keepAlive, s.client)
	if err != nil {
		if err == status.ErrResponseTooLarge {
			_ = s.client.Write(s.formatter.Render(s.request.Proto, err))
		}

		return false
	}

	s.parser.Reset()
	s.request.Reset()
	s.response.Clear()

	return keepAlive
}

// withinCeilings checks the per-connection ceilings that apply regardless of
// what the request asked for. HTTP/0.9+ connections get ceilings of their own.
func (s *Server) withinCeilings() bool {
	maxRequests, lifetime := s.cfg.Connection.MaxRequests, s.cfg.Connection.Lifetime
	if s.request.Proto == proto.HTTP09 {
		maxRequests, lifetime = s.cfg.HTTP09.MaxRequests, s.cfg.HTTP09.Lifetime
	}

	return s.conn.Requests < maxRequests && time.Since(s.started) < lifetime
}

// reset returns the whole kit to its pristine state for the next connection.
func (s *Server) reset() {
	s.client = nil
	s.conn.Reset()
	s.parser.Reset()
	s.request.Reset()
	s.request.Remote = nil
	s.request.Local = nil
	s.response.Clear()
}
