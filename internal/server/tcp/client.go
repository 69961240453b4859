package tcp

import (
	"net"
	"time"

	"github.com/indigo-web/utils/unreader"
)

// Client is a byte-stream with a take-back: bytes read past a request
// boundary are returned via Unread and come back first on the next Read,
// which is what makes pipelining carry-over work.
type Client interface {
	Read() ([]byte, error)
	Unread([]byte)
	Write([]byte) error
	Remote() net.Addr
	Local() net.Addr
	Close() error
	// SetReadTimeout switches the deadline applied to subsequent reads. The
	// connection uses it to tell the in-request read timeout from the
	// keep-alive idle timeout.
	SetReadTimeout(timeout time.Duration)
}

type client struct {
	unreader     *unreader.Unreader
	buff         []byte
	conn         net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewClient wraps a connection. The read buffer is borrowed, not owned, so it
// can come from the per-worker buffer set.
func NewClient(conn net.Conn, buff []byte, readTimeout, writeTimeout time.Duration) Client {
	return &client{
		unreader:     new(unreader.Unreader),
		buff:         buff,
		conn:         conn,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

func (c *client) Read() ([]byte, error) {
	return c.unreader.PendingOr(func() ([]byte, error) {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}

		n, err := c.conn.Read(c.buff)

		return c.buff[:n], err
	})
}

func (c *client) Unread(b []byte) {
	c.unreader.Unread(b)
}

func (c *client) Write(b []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}

	_, err := c.conn.Write(b)

	return err
}

func (c *client) Remote() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *client) Local() net.Addr {
	return c.conn.LocalAddr()
}

func (c *client) Close() error {
	return c.conn.Close()
}

func (c *client) SetReadTimeout(timeout time.Duration) {
	c.readTimeout = timeout
}
