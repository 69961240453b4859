package http1

import (
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/chunkedbody"
	"github.com/indigo-web/utils/buffer"
	"github.com/stretchr/testify/require"

	"github.com/maker-web/maker/config"
	"github.com/maker-web/maker/http"
	"github.com/maker-web/maker/http/method"
	"github.com/maker-web/maker/http/proto"
	"github.com/maker-web/maker/http/status"
	"github.com/maker-web/maker/http/url"
	"github.com/maker-web/maker/internal/transport"
	"github.com/maker-web/maker/kv"
)

func getParser(cfg *config.Config) (*Parser, *http.Request) {
	size := cfg.RequestBufferSize()
	buff := buffer.New(size, size)
	request := http.NewRequest(
		url.New(cfg.URI.MaxSegments, cfg.URI.Query.MaxParams),
		kv.NewPrealloc(cfg.Headers.MaxCount),
	)
	chunkedParser := chunkedbody.NewParser(chunkedbody.DefaultSettings())

	return NewParser(request, buff, chunkedParser, cfg), request
}

type wantedRequest struct {
	Method   method.Method
	Path     string
	Protocol proto.Proto
	Headers  map[string]string
}

func compareRequests(t *testing.T, wanted wantedRequest, actual *http.Request) {
	require.Equal(t, wanted.Method, actual.Method)
	require.Equal(t, wanted.Path, actual.URL.Path())
	require.Equal(t, wanted.Protocol, actual.Proto)

	for key, value := range wanted.Headers {
		require.Equal(t, value, actual.Headers.Value(key))
	}
}

func splitIntoParts(req []byte, n int) (parts [][]byte) {
	for i := 0; i < len(req); i += n {
		end := i + n
		if end > len(req) {
			end = len(req)
		}

		parts = append(parts, req[i:end])
	}

	return parts
}

func feedPartially(
	parser *Parser, rawRequest []byte, n int,
) (state transport.RequestState, extra []byte, err error) {
	parts := splitIntoParts(rawRequest, n)

	for _, chunk := range parts {
		state, extra, err = parser.Parse(chunk)
		if err != nil {
			return state, extra, err
		} else if state != transport.Pending {
			return state, extra, err
		}
	}

	return state, extra, nil
}

func TestParserGET(t *testing.T) {
	parser, request := getParser(config.Default())

	rewind := func() {
		parser.Reset()
		request.Reset()
	}

	t.Run("simple GET", func(t *testing.T) {
		defer rewind()

		raw := "GET / HTTP/1.1\r\n\r\n"
		state, extra, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)
		require.Empty(t, extra)

		compareRequests(t, wantedRequest{
			Method:   method.GET,
			Path:     "/",
			Protocol: proto.HTTP11,
		}, request)
	})

	t.Run("GET with headers", func(t *testing.T) {
		defer rewind()

		easter := uniuri.New()
		raw := "GET / HTTP/1.1\r\nHello: World!\r\nEaster: " + easter + "\r\n\r\n"
		state, extra, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)
		require.Empty(t, extra)

		compareRequests(t, wantedRequest{
			Method:   method.GET,
			Path:     "/",
			Protocol: proto.HTTP11,
			Headers: map[string]string{
				"hello":  "World!",
				"easter": easter,
			},
		}, request)
	})

	t.Run("single slashes in the query are fine", func(t *testing.T) {
		defer rewind()

		raw := "GET /a/?next=/home HTTP/1.1\r\n\r\n"
		state, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)
		require.Equal(t, "/home", request.URL.QueryOr("next", ""))
	})

	t.Run("GET with query", func(t *testing.T) {
		defer rewind()

		raw := "GET /search?hello=world&lonely HTTP/1.1\r\n\r\n"
		state, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)

		require.Equal(t, "/search", request.URL.Path())
		require.Equal(t, "hello=world&lonely", request.URL.RawQuery())

		value, found := request.URL.Query("hello")
		require.True(t, found)
		require.Equal(t, "world", value)

		value, found = request.URL.Query("lonely")
		require.True(t, found)
		require.Empty(t, value)
	})

	t.Run("fragmented arbitrarily", func(t *testing.T) {
		raw := []byte("GET /path/to/the/handler?key=value HTTP/1.1\r\nAccept: everything\r\nHost: localhost\r\n\r\n")

		for n := 1; n <= len(raw); n++ {
			state, extra, err := feedPartially(parser, raw, n)
			require.NoError(t, err, "n=%d", n)
			require.Equal(t, transport.RequestCompleted, state, "n=%d", n)
			require.Empty(t, extra)

			compareRequests(t, wantedRequest{
				Method:   method.GET,
				Path:     "/path/to/the/handler",
				Protocol: proto.HTTP11,
				Headers: map[string]string{
					"accept": "everything",
					"host":   "localhost",
				},
			}, request)

			rewind()
		}
	})

	t.Run("pipelined requests", func(t *testing.T) {
		defer rewind()

		raw := "GET /first HTTP/1.1\r\n\r\nGET /second HTTP/1.1\r\n\r\n"
		state, extra, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)
		require.Equal(t, "/first", request.URL.Path())
		require.Equal(t, "GET /second HTTP/1.1\r\n\r\n", string(extra))

		rewind()

		state, extra, err = parser.Parse(extra)
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)
		require.Empty(t, extra)
		require.Equal(t, "/second", request.URL.Path())
	})

	t.Run("custom method token", func(t *testing.T) {
		defer rewind()

		raw := "PURGE /cache HTTP/1.1\r\n\r\n"
		state, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)
		require.Equal(t, method.Method("PURGE"), request.Method)
	})
}

func TestParserHTTP09(t *testing.T) {
	parser, request := getParser(config.Default())

	rewind := func() {
		parser.Reset()
		request.Reset()
	}

	t.Run("bare target", func(t *testing.T) {
		defer rewind()

		state, extra, err := parser.Parse([]byte("/stats\r\n"))
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)
		require.Empty(t, extra)

		require.Equal(t, proto.HTTP09, request.Proto)
		require.Equal(t, method.GET, request.Method)
		require.Equal(t, "/stats", request.URL.Path())
		require.False(t, request.KeptAlive09)
	})

	t.Run("method and target", func(t *testing.T) {
		defer rewind()

		state, _, err := parser.Parse([]byte("GET /stats\r\n"))
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)
		require.Equal(t, proto.HTTP09, request.Proto)
		require.Equal(t, "/stats", request.URL.Path())
	})

	t.Run("keep-alive prefix is stripped", func(t *testing.T) {
		defer rewind()

		state, _, err := parser.Parse([]byte("/keep_alive/stats\r\n"))
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)

		require.True(t, request.KeptAlive09)
		require.Equal(t, "/stats", request.URL.Path())
	})

	t.Run("query survives the prefix", func(t *testing.T) {
		defer rewind()

		state, _, err := parser.Parse([]byte("/keep_alive/metrics?verbose=1\r\n"))
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)

		require.True(t, request.KeptAlive09)
		require.Equal(t, "/metrics", request.URL.Path())
		require.Equal(t, "1", request.URL.QueryOr("verbose", ""))
	})

	t.Run("disabled by config", func(t *testing.T) {
		cfg := config.Default()
		cfg.HTTP09.Enabled = false
		parser, _ := getParser(cfg)

		state, _, err := parser.Parse([]byte("/stats\r\n"))
		require.ErrorIs(t, err, status.ErrMalformedRequestLine)
		require.Equal(t, transport.Error, state)
	})
}

func TestParserBody(t *testing.T) {
	parser, request := getParser(config.Default())

	rewind := func() {
		parser.Reset()
		request.Reset()
	}

	t.Run("content-length", func(t *testing.T) {
		defer rewind()

		raw := "POST /echo HTTP/1.1\r\nContent-Length: 13\r\n\r\nHello, world!"
		state, extra, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)
		require.Empty(t, extra)

		require.Equal(t, 13, request.ContentLength)
		require.Equal(t, "Hello, world!", string(request.Body))
	})

	t.Run("fragmented body", func(t *testing.T) {
		payload := uniuri.NewLen(64)
		raw := []byte("POST /echo HTTP/1.1\r\nContent-Length: 64\r\n\r\n" + payload)

		for n := 1; n <= len(raw); n++ {
			state, _, err := feedPartially(parser, raw, n)
			require.NoError(t, err, "n=%d", n)
			require.Equal(t, transport.RequestCompleted, state, "n=%d", n)
			require.Equal(t, payload, string(request.Body))

			rewind()
		}
	})

	t.Run("pipelined request after body", func(t *testing.T) {
		defer rewind()

		raw := "POST /echo HTTP/1.1\r\nContent-Length: 2\r\n\r\nhiGET / HTTP/1.1\r\n\r\n"
		state, extra, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)
		require.Equal(t, "hi", string(request.Body))
		require.Equal(t, "GET / HTTP/1.1\r\n\r\n", string(extra))
	})

	t.Run("chunked", func(t *testing.T) {
		defer rewind()

		raw := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
			"7\r\nMozilla\r\n9\r\nDeveloper\r\n7\r\nNetwork\r\n0\r\n\r\n"
		state, extra, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)
		require.Empty(t, extra)

		require.True(t, request.Chunked)
		require.Equal(t, "MozillaDeveloperNetwork", string(request.Body))
	})

	t.Run("chunked fragmented", func(t *testing.T) {
		raw := []byte(
			"POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
				"d\r\nHello, world!\r\n7\r\nNetwork\r\n0\r\n\r\n",
		)

		for n := 1; n <= len(raw); n++ {
			state, _, err := feedPartially(parser, raw, n)
			require.NoError(t, err, "n=%d", n)
			require.Equal(t, transport.RequestCompleted, state, "n=%d", n)
			require.Equal(t, "Hello, world!Network", string(request.Body))

			rewind()
		}
	})

	t.Run("declared body above the limit", func(t *testing.T) {
		defer rewind()

		raw := "POST / HTTP/1.1\r\nContent-Length: 5000\r\n\r\n"
		state, _, err := parser.Parse([]byte(raw))
		require.ErrorIs(t, err, status.ErrBodyTooLarge)
		require.Equal(t, transport.Error, state)
	})

	t.Run("bad content-length", func(t *testing.T) {
		defer rewind()

		raw := "POST / HTTP/1.1\r\nContent-Length: 13abc\r\n\r\n"
		state, _, err := parser.Parse([]byte(raw))
		require.ErrorIs(t, err, status.ErrBadContentLength)
		require.Equal(t, transport.Error, state)
	})

	t.Run("unsupported transfer-encoding", func(t *testing.T) {
		defer rewind()

		raw := "POST / HTTP/1.1\r\nTransfer-Encoding: gzip\r\n\r\n"
		state, _, err := parser.Parse([]byte(raw))
		require.ErrorIs(t, err, status.ErrMalformedHeader)
		require.Equal(t, transport.Error, state)
	})
}

func TestParserMalformedRequests(t *testing.T) {
	parse := func(raw string) error {
		parser, _ := getParser(config.Default())
		state, _, err := parser.Parse([]byte(raw))
		require.Equal(t, transport.Error, state)

		return err
	}

	t.Run("double slash in path", func(t *testing.T) {
		require.ErrorIs(t, parse("GET /foo//bar HTTP/1.1\r\n\r\n"), status.ErrDoubleSlash)
	})

	t.Run("double slash split across feedings", func(t *testing.T) {
		parser, _ := getParser(config.Default())
		state, _, err := parser.Parse([]byte("GET /foo/"))
		require.NoError(t, err)
		require.Equal(t, transport.Pending, state)

		state, _, err = parser.Parse([]byte("/bar HTTP/1.1\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrDoubleSlash)
		require.Equal(t, transport.Error, state)
	})

	t.Run("double slash in query", func(t *testing.T) {
		require.ErrorIs(t, parse("GET /a?redirect=//evil HTTP/1.1\r\n\r\n"), status.ErrDoubleSlash)
	})

	t.Run("double slash in query split across feedings", func(t *testing.T) {
		parser, _ := getParser(config.Default())
		state, _, err := parser.Parse([]byte("GET /a?x=/"))
		require.NoError(t, err)
		require.Equal(t, transport.Pending, state)

		state, _, err = parser.Parse([]byte("/y HTTP/1.1\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrDoubleSlash)
		require.Equal(t, transport.Error, state)
	})

	t.Run("no space after header colon", func(t *testing.T) {
		require.ErrorIs(t, parse("GET / HTTP/1.1\r\nHost:localhost\r\n\r\n"), status.ErrMalformedHeader)
	})

	t.Run("bare LF terminates the request line", func(t *testing.T) {
		require.ErrorIs(t, parse("GET / HTTP/1.1\n\n"), status.ErrMalformedRequestLine)
	})

	t.Run("bare LF terminates a header", func(t *testing.T) {
		require.ErrorIs(t, parse("GET / HTTP/1.1\r\nHost: localhost\n\r\n"), status.ErrMalformedHeader)
	})

	t.Run("header line without colon", func(t *testing.T) {
		require.ErrorIs(t, parse("GET / HTTP/1.1\r\nweird\r\n\r\n"), status.ErrMalformedHeader)
	})

	t.Run("empty header name", func(t *testing.T) {
		require.ErrorIs(t, parse("GET / HTTP/1.1\r\n: value\r\n\r\n"), status.ErrMalformedHeader)
	})

	t.Run("leading CRLF", func(t *testing.T) {
		require.ErrorIs(t, parse("\r\nGET / HTTP/1.1\r\n\r\n"), status.ErrMalformedRequestLine)
	})

	t.Run("unsupported protocol version", func(t *testing.T) {
		require.ErrorIs(t, parse("GET / HTTP/1.2\r\n\r\n"), status.ErrUnsupportedVersion)
	})

	t.Run("garbage instead of a version", func(t *testing.T) {
		require.ErrorIs(t, parse("GET / JUNKPROTOCOL\r\n\r\n"), status.ErrBadVersion)
	})

	t.Run("path not starting with a slash", func(t *testing.T) {
		require.ErrorIs(t, parse("GET example.com HTTP/1.1\r\n\r\n"), status.ErrBadURL)
	})

	t.Run("invalid utf-8 in a header value", func(t *testing.T) {
		require.ErrorIs(t, parse("GET / HTTP/1.1\r\nHost: \xff\xfe\r\n\r\n"), status.ErrInvalidEncoding)
	})

	t.Run("invalid utf-8 in a header name", func(t *testing.T) {
		require.ErrorIs(t, parse("GET / HTTP/1.1\r\n\xff\xfe: value\r\n\r\n"), status.ErrInvalidEncoding)
	})

	t.Run("control byte in the path", func(t *testing.T) {
		require.ErrorIs(t, parse("GET /\x01 HTTP/1.1\r\n\r\n"), status.ErrBadURL)
	})
}

func TestParserLimits(t *testing.T) {
	t.Run("path too long", func(t *testing.T) {
		cfg := config.Default()
		parser, _ := getParser(cfg)

		raw := "GET /" + strings.Repeat("a", cfg.URI.MaxLength) + " HTTP/1.1\r\n\r\n"
		state, _, err := parser.Parse([]byte(raw))
		require.ErrorIs(t, err, status.ErrURLTooLong)
		require.Equal(t, transport.Error, state)
	})

	t.Run("query too long", func(t *testing.T) {
		cfg := config.Default()
		parser, _ := getParser(cfg)

		raw := "GET /?" + strings.Repeat("q", cfg.URI.Query.MaxLength+1) + " HTTP/1.1\r\n\r\n"
		state, _, err := parser.Parse([]byte(raw))
		require.ErrorIs(t, err, status.ErrQueryTooLong)
		require.Equal(t, transport.Error, state)
	})

	t.Run("too many headers", func(t *testing.T) {
		cfg := config.Default()
		parser, _ := getParser(cfg)

		var sb strings.Builder
		sb.WriteString("GET / HTTP/1.1\r\n")
		for i := 0; i <= cfg.Headers.MaxCount; i++ {
			sb.WriteString("x-filler-")
			sb.WriteByte(byte('a' + i))
			sb.WriteString(": yes\r\n")
		}
		sb.WriteString("\r\n")

		state, _, err := parser.Parse([]byte(sb.String()))
		require.ErrorIs(t, err, status.ErrTooManyHeaders)
		require.Equal(t, transport.Error, state)
	})

	t.Run("header name too long", func(t *testing.T) {
		cfg := config.Default()
		parser, _ := getParser(cfg)

		raw := strings.Repeat("k", cfg.Headers.MaxKeyLength+1)
		state, _, err := parser.Parse([]byte("GET / HTTP/1.1\r\n" + raw + ": v\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrHeaderFieldTooLarge)
		require.Equal(t, transport.Error, state)
	})

	t.Run("header value too long", func(t *testing.T) {
		cfg := config.Default()
		parser, _ := getParser(cfg)

		raw := strings.Repeat("v", cfg.Headers.MaxValueLength+1)
		state, _, err := parser.Parse([]byte("GET / HTTP/1.1\r\nkey: " + raw + "\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrHeaderFieldTooLarge)
		require.Equal(t, transport.Error, state)
	})

	t.Run("method too long", func(t *testing.T) {
		parser, _ := getParser(config.Default())

		state, _, err := parser.Parse([]byte(strings.Repeat("M", config.MaxMethodLength+1) + " / HTTP/1.1\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrMalformedMethod)
		require.Equal(t, transport.Error, state)
	})

	t.Run("request maxing every cap at once fits the buffer", func(t *testing.T) {
		cfg := config.Default()
		cfg.Headers.MaxCount = 1
		cfg.Body.MaxSize = 0
		parser, request := getParser(cfg)

		raw := strings.Repeat("M", config.MaxMethodLength) +
			" /" + strings.Repeat("a", cfg.URI.MaxLength-1) +
			"?" + strings.Repeat("q", cfg.URI.Query.MaxLength) +
			" HTTP/1.1\r\n" +
			strings.Repeat("k", cfg.Headers.MaxKeyLength) +
			": " + strings.Repeat("v", cfg.Headers.MaxValueLength) +
			"\r\n\r\n"

		state, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, transport.RequestCompleted, state)
		require.Equal(t, method.Method(strings.Repeat("M", config.MaxMethodLength)), request.Method)
		require.Equal(t, strings.Repeat("q", cfg.URI.Query.MaxLength), request.URL.RawQuery())
	})
}

func TestParserPristine(t *testing.T) {
	parser, request := getParser(config.Default())

	require.True(t, parser.Pristine())

	state, _, err := parser.Parse([]byte("GET /somewhe"))
	require.NoError(t, err)
	require.Equal(t, transport.Pending, state)
	require.False(t, parser.Pristine())

	state, _, err = parser.Parse([]byte("re HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	require.Equal(t, transport.RequestCompleted, state)
	require.Equal(t, "/somewhere", request.URL.Path())

	parser.Reset()
	request.Reset()
	require.True(t, parser.Pristine())
}
