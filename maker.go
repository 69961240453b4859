package maker

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/indigo-web/chunkedbody"
	"github.com/indigo-web/utils/buffer"
	"github.com/indigo-web/utils/pool"
	"github.com/pkg/errors"

	"github.com/maker-web/maker/config"
	"github.com/maker-web/maker/http"
	"github.com/maker-web/maker/http/status"
	"github.com/maker-web/maker/http/url"
	"github.com/maker-web/maker/internal/admission"
	httpserver "github.com/maker-web/maker/internal/server/http"
	"github.com/maker-web/maker/internal/server/tcp"
	"github.com/maker-web/maker/internal/transport/http1"
	"github.com/maker-web/maker/kv"
)

// The public surface of the engine, so that embedding it needs a single
// import.
type (
	Handler     = http.Handler
	HandlerFunc = http.HandlerFunc
	Filter      = http.Filter
	FilterFunc  = http.FilterFunc
)

const (
	Respond          = http.Respond
	RespondThenClose = http.RespondThenClose
	CloseSilently    = http.CloseSilently
)

// DataInitializer produces the user's connection-scoped value. Called once
// per admitted connection.
type DataInitializer func() any

// App ties the pieces together: the accept loop, the admission gate, the
// fixed pool of connection kits and the user's handler.
type App struct {
	addr     string
	cfg      *config.Config
	filter   Filter
	initData DataInitializer
	hooks    hooks
	gate     *admission.Controller
	errCh    chan error
}

func New(addr string) *App {
	return &App{
		addr: addr,
		cfg:  config.Default(),
		// buffered, so that a stop request never has to wait for the serve
		// loop to reach its receive
		errCh: make(chan error, 1),
	}
}

// Tune replaces the default config. Zero fields are filled with defaults.
func (a *App) Tune(cfg config.Config) *App {
	a.cfg = config.Fill(&cfg)
	return a
}

// WithFilter installs the connection filter consulted at accept time.
func (a *App) WithFilter(f Filter) *App {
	a.filter = f
	return a
}

// OnConnection installs the initializer for the per-connection data slot
// handlers receive via Connection.Data.
func (a *App) OnConnection(init DataInitializer) *App {
	a.initData = init
	return a
}

// NotifyOnStart calls the callback once the server is about to accept
// connections.
func (a *App) NotifyOnStart(cb func()) *App {
	a.hooks.OnStart = cb
	return a
}

// NotifyOnStop calls the callback when the server is fully down: no new
// connections are accepted and the pools have drained.
func (a *App) NotifyOnStop(cb func()) *App {
	a.hooks.OnStop = cb
	return a
}

// Serve binds the listener and runs until Stop, GracefulStop or a listener
// failure. Everything the engine will ever allocate is allocated before the
// first connection is accepted.
func (a *App) Serve(h Handler) error {
	if h == nil {
		h = HandlerFunc(notFound)
	}

	sock, err := net.Listen("tcp", a.addr)
	if err != nil {
		return errors.Wrap(err, "maker: listen")
	}

	formatter := http1.NewFormatter(a.cfg.NET.JSONErrors)

	// the fixed pool of connection kits: one per worker, acquired at
	// admission, released at closure
	kits := pool.NewObjectPool[*kit](a.cfg.NET.MaxConnections)
	for i := 0; i < a.cfg.NET.MaxConnections; i++ {
		kits.Release(a.newKit(h, formatter))
	}

	var kitMu sync.Mutex
	serve := func(conn net.Conn) {
		kitMu.Lock()
		k := kits.Acquire()
		kitMu.Unlock()

		if k == nil {
			// never happens: there are exactly as many kits as workers
			k = a.newKit(h, formatter)
		}

		k.run(a, conn)

		kitMu.Lock()
		kits.Release(k)
		kitMu.Unlock()
	}

	a.gate = admission.New(
		a.cfg.NET, a.cfg.Connection.WriteTimeout, a.filter, serve,
		formatter.Rejection(), formatter.Overload(),
	)
	a.gate.Start()

	srv := tcp.NewServer(sock, a.cfg.NET.AcceptLoopInterruptPeriod, a.gate.Admit)

	var failSilently atomic.Bool
	accepting := make(chan struct{})
	go func() {
		defer close(accepting)

		err := srv.Start()

		if failSilently.Swap(true) {
			return
		}

		a.errCh <- err
	}()

	callIfNotNil(a.hooks.OnStart)
	err = <-a.errCh
	failSilently.Store(true)

	// the gate must not be shut down while the accept loop may still be
	// feeding it connections
	_ = srv.Stop()
	<-accepting

	a.gate.Shutdown(err != status.ErrGracefulShutdown)
	callIfNotNil(a.hooks.OnStop)

	return err
}

// Stats returns a snapshot of the admission counters. Zero before Serve.
func (a *App) Stats() admission.Stats {
	if a.gate == nil {
		return admission.Stats{}
	}

	return a.gate.Stats()
}

// GracefulStop stops accepting new connections and lets the served ones
// finish. The call returns before the shutdown completes.
func (a *App) GracefulStop() {
	a.requestStop(status.ErrGracefulShutdown)
}

// Stop tears the whole application down, served connections included. The
// call returns before the shutdown completes.
func (a *App) Stop() {
	a.requestStop(status.ErrShutdown)
}

// requestStop never blocks: when the serve loop is already down (or a stop
// request is already in flight), there's nothing left to do.
func (a *App) requestStop(reason error) {
	select {
	case a.errCh <- reason:
	default:
	}
}

// kit is one worker's pre-allocated resource set: the request buffer, the
// socket read buffer, and the whole parse/dispatch/serialize pipeline wired
// around them.
type kit struct {
	readBuff []byte
	server   *httpserver.Server
}

func (a *App) newKit(h Handler, formatter *http1.Formatter) *kit {
	size := a.cfg.RequestBufferSize()
	buff := buffer.New(size, size)
	request := http.NewRequest(
		url.New(a.cfg.URI.MaxSegments, a.cfg.URI.Query.MaxParams),
		kv.NewPrealloc(a.cfg.Headers.MaxCount),
	)
	parser := http1.NewParser(request, buff, chunkedbody.NewParser(chunkedbody.DefaultSettings()), a.cfg)
	serializer := http1.NewSerializer(a.cfg.Response)

	return &kit{
		readBuff: make([]byte, a.cfg.NET.ReadBufferSize),
		server:   httpserver.NewServer(a.cfg, h, formatter, parser, serializer, request, http.NewResponse()),
	}
}

func (k *kit) run(a *App, conn net.Conn) {
	client := tcp.NewClient(conn, k.readBuff, a.cfg.Connection.ReadTimeout, a.cfg.Connection.WriteTimeout)

	var data any
	if a.initData != nil {
		data = a.initData()
	}

	k.server.Run(client, data)
}

func notFound(_ *http.Connection, _ *http.Request, resp *http.Response) http.Action {
	resp.Code(status.NotFound)
	return http.Respond
}

type hooks struct {
	OnStart, OnStop func()
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}
