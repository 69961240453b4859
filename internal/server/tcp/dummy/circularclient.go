package dummy

import (
	"io"
	"net"
	"time"

	"github.com/indigo-web/utils/unreader"
)

// CircularClient replays the same data on every read. Used in tests and
// benchmarks; OneTime() turns it into a single-pass client.
type CircularClient struct {
	unreader        *unreader.Unreader
	data            [][]byte
	written         []byte
	pointer         int
	closed, oneTime bool
}

func NewCircularClient(data ...[]byte) *CircularClient {
	return &CircularClient{
		unreader: new(unreader.Unreader),
		data:     data,
		pointer:  -1,
	}
}

func (c *CircularClient) Read() ([]byte, error) {
	if c.closed {
		return nil, io.EOF
	}

	return c.unreader.PendingOr(func() ([]byte, error) {
		c.pointer++

		if c.pointer == len(c.data) {
			if c.oneTime {
				c.closed = true
				return nil, io.EOF
			}

			c.pointer = 0
		}

		return c.data[c.pointer], nil
	})
}

func (c *CircularClient) Unread(takeback []byte) {
	c.unreader.Unread(takeback)
}

func (c *CircularClient) Write(b []byte) error {
	c.written = append(c.written, b...)
	return nil
}

// Written returns everything the server has sent so far.
func (c *CircularClient) Written() []byte {
	return c.written
}

func (*CircularClient) Remote() net.Addr {
	return nil
}

func (*CircularClient) Local() net.Addr {
	return nil
}

func (c *CircularClient) Close() error {
	c.closed = true
	return nil
}

func (*CircularClient) SetReadTimeout(time.Duration) {}

func (c *CircularClient) OneTime() *CircularClient {
	c.oneTime = true
	return c
}
