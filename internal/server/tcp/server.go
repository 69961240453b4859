package tcp

import (
	"net"
	"time"

	"github.com/maker-web/maker/http/status"
)

type onConnection func(net.Conn)

// Server is the accept loop. It does nothing but pull connections off the
// listener and hand them over; admission, limits and closing are someone
// else's business.
type Server struct {
	sock            net.Listener
	onConn          onConnection
	interruptPeriod time.Duration
	shutdown        bool
}

func NewServer(sock net.Listener, interruptPeriod time.Duration, onConn onConnection) *Server {
	return &Server{
		sock:            sock,
		onConn:          onConn,
		interruptPeriod: interruptPeriod,
	}
}

func (s *Server) Start() error {
	for {
		s.punctuate()

		conn, err := s.sock.Accept()
		switch {
		case err == nil:
		case s.shutdown:
			return status.ErrShutdown
		case isTimeout(err):
			continue
		default:
			return err
		}

		s.onConn(conn)
	}
}

// Stop shuts the listener down, letting already admitted connections finish.
// Interrupting them as well is up to the admission layer.
func (s *Server) Stop() error {
	s.shutdown = true

	return s.sock.Close()
}

// punctuate interrupts Accept periodically, so a shutdown request never waits
// for a client to show up first.
func (s *Server) punctuate() {
	if ln, ok := s.sock.(*net.TCPListener); ok && s.interruptPeriod > 0 {
		_ = ln.SetDeadline(time.Now().Add(s.interruptPeriod))
	}
}

func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
