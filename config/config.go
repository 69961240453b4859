package config

import (
	"time"
)

// MaxMethodLength caps the method token. It is not configurable: no method in
// the wild comes close, and the request buffer sizing depends on it.
const MaxMethodLength = 32

type (
	NET struct {
		// MaxConnections limits how many connections may be processed at once. Each
		// connection occupies one worker and one pre-allocated buffer set for its
		// whole lifetime.
		MaxConnections int
		// MaxPendingConnections bounds the queue of accepted but not yet admitted
		// connections. When the queue is full, new connections are deflected via
		// the overload responders.
		MaxPendingConnections int
		// Handlers503 is the number of dedicated overload responders. Setting it
		// to zero makes overflowing connections be dropped silently, without even
		// a 503.
		Handlers503 int
		// JSONErrors switches error responses between structured JSON bodies and
		// bare status lines.
		JSONErrors bool
		// ReadBufferSize is a size of buffer in bytes which will be used to read
		// from socket.
		ReadBufferSize int
		// AcceptLoopInterruptPeriod controls how often the Accept() call is
		// interrupted in order to check whether it's time to stop.
		AcceptLoopInterruptPeriod time.Duration
	}

	Connection struct {
		// ReadTimeout limits how long a single read may wait for request bytes,
		// including body bytes.
		ReadTimeout time.Duration
		// WriteTimeout limits how long a response write may take.
		WriteTimeout time.Duration
		// IdleTimeout limits how long a kept-alive connection may stay silent
		// between requests. Zero falls back to ReadTimeout.
		IdleTimeout time.Duration
		// MaxRequests caps the number of requests served on a single connection.
		MaxRequests int
		// Lifetime caps the total lifetime of a connection, no matter how active
		// it is.
		Lifetime time.Duration
	}

	// HTTP09 tunes the request-line-only protocol flavour. It gets reduced
	// ceilings of its own, as such requests are much cheaper to serve.
	HTTP09 struct {
		Enabled     bool
		MaxRequests int
		Lifetime    time.Duration
	}

	Query struct {
		// MaxLength limits the query string, exclusive of the question mark.
		MaxLength int
		// MaxParams limits how many key=value pairs a query may carry.
		MaxParams int
	}

	URI struct {
		// MaxLength limits the path, exclusive of the query string.
		MaxLength int
		// MaxSegments limits how many slash-separated segments a path may have.
		MaxSegments int
		Query       Query
	}

	Headers struct {
		// MaxCount is the maximal number of header lines in a request.
		MaxCount int
		// MaxKeyLength limits a single header name.
		MaxKeyLength int
		// MaxValueLength limits a single header value.
		MaxValueLength int
	}

	Body struct {
		// MaxSize limits the request body. Zero discards any request carrying
		// a body.
		MaxSize int
	}

	Response struct {
		// BufferSize is the initial capacity of the response staging buffer.
		BufferSize int
		// MaxBufferSize is the hard cap. A response rendering above it is
		// reported as an error instead of being truncated. If serving a response
		// grew the buffer past this value, it is re-allocated back to BufferSize
		// afterwards, otherwise it is simply cleared in place.
		MaxBufferSize int
	}
)

// Config holds limits and timeouts used across the engine. All values are
// read-only once the server has started.
//
// Always modify defaults (returned via Default()) instead of constructing the
// config manually, otherwise zero fields may result in ambiguous errors.
type Config struct {
	NET        NET
	Connection Connection
	HTTP09     HTTP09
	URI        URI
	Headers    Headers
	Body       Body
	Response   Response
}

// Default returns the canonical config. The limits are deliberately tight:
// the engine is meant for microservices, not for general-purpose file serving.
func Default() *Config {
	return &Config{
		NET: NET{
			MaxConnections:            100,
			MaxPendingConnections:     250,
			Handlers503:               1,
			JSONErrors:                true,
			ReadBufferSize:            4 * 1024,
			AcceptLoopInterruptPeriod: 5 * time.Second,
		},
		Connection: Connection{
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 3 * time.Second,
			IdleTimeout:  2 * time.Second,
			MaxRequests:  100,
			Lifetime:     120 * time.Second,
		},
		HTTP09: HTTP09{
			Enabled:     true,
			MaxRequests: 250,
			Lifetime:    30 * time.Second,
		},
		URI: URI{
			MaxLength:   256,
			MaxSegments: 8,
			Query: Query{
				MaxLength: 128,
				MaxParams: 8,
			},
		},
		Headers: Headers{
			MaxCount:       16,
			MaxKeyLength:   64,
			MaxValueLength: 512,
		},
		Body: Body{
			MaxSize: 4 * 1024,
		},
		Response: Response{
			BufferSize:    1024,
			MaxBufferSize: 8 * 1024,
		},
	}
}

// Fill replaces every zero field with its default, so partially filled configs
// stay usable.
func Fill(cfg *Config) *Config {
	defaults := Default()

	customizeInt(&cfg.NET.MaxConnections, defaults.NET.MaxConnections)
	customizeInt(&cfg.NET.MaxPendingConnections, defaults.NET.MaxPendingConnections)
	customizeInt(&cfg.NET.ReadBufferSize, defaults.NET.ReadBufferSize)
	customizeDuration(&cfg.NET.AcceptLoopInterruptPeriod, defaults.NET.AcceptLoopInterruptPeriod)
	customizeDuration(&cfg.Connection.ReadTimeout, defaults.Connection.ReadTimeout)
	customizeDuration(&cfg.Connection.WriteTimeout, defaults.Connection.WriteTimeout)
	customizeDuration(&cfg.Connection.IdleTimeout, cfg.Connection.ReadTimeout)
	customizeInt(&cfg.Connection.MaxRequests, defaults.Connection.MaxRequests)
	customizeDuration(&cfg.Connection.Lifetime, defaults.Connection.Lifetime)
	customizeInt(&cfg.HTTP09.MaxRequests, defaults.HTTP09.MaxRequests)
	customizeDuration(&cfg.HTTP09.Lifetime, defaults.HTTP09.Lifetime)
	customizeInt(&cfg.URI.MaxLength, defaults.URI.MaxLength)
	customizeInt(&cfg.URI.MaxSegments, defaults.URI.MaxSegments)
	customizeInt(&cfg.URI.Query.MaxLength, defaults.URI.Query.MaxLength)
	customizeInt(&cfg.URI.Query.MaxParams, defaults.URI.Query.MaxParams)
	customizeInt(&cfg.Headers.MaxCount, defaults.Headers.MaxCount)
	customizeInt(&cfg.Headers.MaxKeyLength, defaults.Headers.MaxKeyLength)
	customizeInt(&cfg.Headers.MaxValueLength, defaults.Headers.MaxValueLength)
	customizeInt(&cfg.Response.BufferSize, defaults.Response.BufferSize)
	customizeInt(&cfg.Response.MaxBufferSize, defaults.Response.MaxBufferSize)

	return cfg
}

// RequestBufferSize derives the capacity of the per-connection request buffer
// from the limits, so that any request passing every individual cap is
// guaranteed to fit. Only bytes that actually get staged count: the method
// token, the target with its question mark, the version token, header names
// and values. Separators and line breaks never reach the buffer.
func (c *Config) RequestBufferSize() int {
	requestLine := MaxMethodLength + 1 + len("HTTP/1.1") + c.URI.MaxLength + c.URI.Query.MaxLength
	headers := c.Headers.MaxCount * (c.Headers.MaxKeyLength + c.Headers.MaxValueLength + 4)

	return requestLine + headers + 2 + c.Body.MaxSize
}

func customizeInt(dst *int, defaultValue int) {
	if *dst == 0 {
		*dst = defaultValue
	}
}

func customizeDuration(dst *time.Duration, defaultValue time.Duration) {
	if *dst == 0 {
		*dst = defaultValue
	}
}
