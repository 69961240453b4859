package admission

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maker-web/maker/config"
	"github.com/maker-web/maker/http"
)

// Stats is a snapshot of the controller's counters.
type Stats struct {
	// Open is the number of connections currently being served.
	Open int64
	// Pending is the number of accepted connections waiting for a free worker.
	Pending int64
	// Deflected counts connections that didn't make it past admission: the
	// pending queue was full, so they got a 503 (or a silent drop) instead.
	Deflected int64
}

// Controller is the gate every connection passes before any HTTP processing.
// A fixed pool of workers serves admitted connections; a bounded channel in
// front of them is the pending queue. When even the queue is full, the
// connection is handed to one of the dedicated overload responders, which
// only ever write a pre-rendered 503. The parser and the handler are never
// involved on that path.
//
// The atomic counters here are the only state shared between connections.
type Controller struct {
	cfg      config.NET
	filter   http.Filter
	serve    func(net.Conn)
	pending  chan net.Conn
	overflow chan net.Conn

	open      atomic.Int64
	queued    atomic.Int64
	deflected atomic.Int64

	writeTimeout time.Duration
	rejection    []byte
	overload     []byte

	mu      sync.Mutex
	active  map[net.Conn]struct{}
	closing bool
	closed  bool
	wg      sync.WaitGroup
}

func New(
	cfg config.NET,
	writeTimeout time.Duration,
	filter http.Filter,
	serve func(net.Conn),
	rejection, overload []byte,
) *Controller {
	return &Controller{
		cfg:          cfg,
		filter:       filter,
		serve:        serve,
		pending:      make(chan net.Conn, cfg.MaxPendingConnections),
		overflow:     make(chan net.Conn, cfg.Handlers503),
		writeTimeout: writeTimeout,
		rejection:    rejection,
		overload:     overload,
		active:       make(map[net.Conn]struct{}, cfg.MaxConnections),
	}
}

// Start spawns the worker and responder pools. Both are fixed-size: nothing
// is ever spawned per connection.
func (c *Controller) Start() {
	for i := 0; i < c.cfg.MaxConnections; i++ {
		c.wg.Add(1)
		go c.worker()
	}

	for i := 0; i < c.cfg.Handlers503; i++ {
		c.wg.Add(1)
		go c.respondOverload()
	}
}

// Admit decides the connection's fate: filtered out, queued, deflected or
// dropped. It never blocks, so a burst can't stall the accept loop. Calling
// it concurrently with Shutdown is safe: late arrivals are closed instead of
// being fed to a gate that is going away.
func (c *Controller) Admit(conn net.Conn) {
	if c.filter != nil {
		if err := c.filter.Accept(conn.RemoteAddr()); err != nil {
			c.refuse(conn, c.rejection)
			return
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		_ = conn.Close()
		return
	}

	select {
	case c.pending <- conn:
		c.queued.Add(1)
	default:
		c.deflect(conn)
	}
}

// deflect is called under c.mu.
func (c *Controller) deflect(conn net.Conn) {
	c.deflected.Add(1)

	if c.cfg.Handlers503 == 0 {
		// configured to not even bother with a 503
		_ = conn.Close()
		return
	}

	select {
	case c.overflow <- conn:
	default:
		_ = conn.Close()
	}
}

// Shutdown stops the pools. With force set, connections being served are
// closed under the workers, otherwise they are left to finish on their own.
// The queues are closed only after the gate is marked, so an Admit racing
// with the shutdown can't hit a closed channel.
func (c *Controller) Shutdown(force bool) {
	c.mu.Lock()
	c.closing = force
	c.closed = true
	if force {
		for conn := range c.active {
			_ = conn.Close()
		}
	}
	c.mu.Unlock()

	close(c.pending)
	close(c.overflow)
	c.wg.Wait()
}

// Stats returns a snapshot of the admission counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Open:      c.open.Load(),
		Pending:   c.queued.Load(),
		Deflected: c.deflected.Load(),
	}
}

func (c *Controller) worker() {
	defer c.wg.Done()

	for conn := range c.pending {
		c.queued.Add(-1)

		if c.dying() {
			_ = conn.Close()
			continue
		}

		c.open.Add(1)
		c.track(conn)
		c.serve(conn)
		c.untrack(conn)
		c.open.Add(-1)
	}
}

func (c *Controller) respondOverload() {
	defer c.wg.Done()

	for conn := range c.overflow {
		_ = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		_, _ = conn.Write(c.overload)
		_ = conn.Close()
	}
}

func (c *Controller) refuse(conn net.Conn, response []byte) {
	_ = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	_, _ = conn.Write(response)
	_ = conn.Close()
}

func (c *Controller) track(conn net.Conn) {
	c.mu.Lock()
	c.active[conn] = struct{}{}
	c.mu.Unlock()
}

func (c *Controller) untrack(conn net.Conn) {
	c.mu.Lock()
	delete(c.active, conn)
	c.mu.Unlock()
}

func (c *Controller) dying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closing
}
