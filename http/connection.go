package http

import (
	"net"
)

// Connection is the per-connection record the handler sees on every request
// served over one TCP stream. Exactly one request is in flight per connection
// at a time, so no synchronization is needed around it.
type Connection struct {
	Remote net.Addr
	Local  net.Addr
	// Requests counts the requests dispatched on this connection, the current
	// one included, i.e. it reads 1 during the first dispatch.
	Requests int
	// Data is the user-defined connection-scoped value. It is produced by the
	// configured initializer when the connection is admitted and dropped with
	// the connection.
	Data any
}

// Reset prepares the record for the next connection served by the same worker.
func (c *Connection) Reset() {
	c.Remote = nil
	c.Local = nil
	c.Requests = 0
	c.Data = nil
}

// Action is what the handler decides to do with the filled-in response.
type Action uint8

const (
	// Respond sends the response and lets keep-alive rules decide the
	// connection's fate.
	Respond Action = iota + 1
	// RespondThenClose sends the response and closes the connection no matter
	// what the request asked for.
	RespondThenClose
	// CloseSilently terminates the connection without writing anything,
	// bypassing serialization entirely.
	CloseSilently
)

// Handler is the user-supplied dispatch target. It only ever observes
// successfully parsed requests and must not retain req or resp views beyond
// the call.
type Handler interface {
	Handle(c *Connection, req *Request, resp *Response) Action
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(c *Connection, req *Request, resp *Response) Action

func (f HandlerFunc) Handle(c *Connection, req *Request, resp *Response) Action {
	return f(c, req, resp)
}

// Filter is consulted at accept time, before any HTTP processing. A non-nil
// error rejects the connection with a pre-rendered 403.
type Filter interface {
	Accept(remote net.Addr) error
}

// FilterFunc adapts a plain function to the Filter interface.
type FilterFunc func(remote net.Addr) error

func (f FilterFunc) Accept(remote net.Addr) error {
	return f(remote)
}
