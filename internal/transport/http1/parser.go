package http1

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/indigo-web/chunkedbody"
	"github.com/indigo-web/utils/buffer"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"

	"github.com/maker-web/maker/config"
	"github.com/maker-web/maker/http"
	"github.com/maker-web/maker/http/method"
	"github.com/maker-web/maker/http/proto"
	"github.com/maker-web/maker/http/status"
	"github.com/maker-web/maker/internal/transport"
)

type parserState uint8

const (
	eMethod parserState = iota + 1
	ePath
	eQuery
	eProto
	eProtoLF
	eHeaderKey
	eHeaderSpace
	eHeaderValue
	eHeaderValueLF
	eFinalLF
	eBody
	eChunkedBody
)

const (
	maxProtoLength  = len("HTTP/1.1")
	keepAlivePrefix = "/keep_alive/"
)

// Parser is a streaming request parser. It tolerates the request being split
// at arbitrary byte boundaries: anything unfinished is staged in the request
// buffer and continued on the next feeding. All views it produces point into
// that buffer, which has a fixed capacity derived from the limits, so nothing
// here ever allocates.
//
// Line endings are strictly CRLF and header lines must match `NAME: VALUE`
// with exactly one space after the colon. Consecutive slashes in the target
// are a hard error instead of being collapsed. The method token is open:
// whatever came before the first space is recorded verbatim.
type Parser struct {
	request       *http.Request
	buff          *buffer.Buffer
	chunkedParser *chunkedbody.Parser
	cfg           *config.Config

	state          parserState
	methodView     []byte
	targetView     []byte
	headerKey      string
	pathLen        int
	lastTargetByte byte
	headersCount   int
	contentLength  int
	bodyLeft       int
	chunked        bool
}

func NewParser(
	request *http.Request, buff *buffer.Buffer, chunkedParser *chunkedbody.Parser, cfg *config.Config,
) *Parser {
	return &Parser{
		state:         eMethod,
		request:       request,
		buff:          buff,
		chunkedParser: chunkedParser,
		cfg:           cfg,
	}
}

// Pristine reports whether the parser hasn't consumed a single byte of the
// next request yet. The connection uses it to tell the idle timeout from the
// read timeout.
func (p *Parser) Pristine() bool {
	return p.state == eMethod && p.buff.SegmentLength() == 0
}

// Reset prepares the parser for the next request on the same connection,
// invalidating every view produced for the previous one.
func (p *Parser) Reset() {
	p.buff.Clear()
	p.state = eMethod
	p.methodView = nil
	p.targetView = nil
	p.headerKey = ""
	p.pathLen = 0
	p.lastTargetByte = 0
	p.headersCount = 0
	p.contentLength = 0
	p.bodyLeft = 0
	p.chunked = false
}

func (p *Parser) Parse(data []byte) (state transport.RequestState, extra []byte, err error) {
	_ = *p.request
	request := p.request

	switch p.state {
	case eMethod:
		goto method
	case ePath:
		goto path
	case eQuery:
		goto query
	case eProto:
		goto protocol
	case eProtoLF:
		goto protocolLF
	case eHeaderKey:
		goto headerKey
	case eHeaderSpace:
		goto headerSpace
	case eHeaderValue:
		goto headerValue
	case eHeaderValueLF:
		goto headerValueLF
	case eFinalLF:
		goto finalLF
	case eBody:
		goto body
	case eChunkedBody:
		goto chunkedBody
	default:
		panic(fmt.Sprintf("BUG: unexpected state: %v", p.state))
	}

method:
	{
		if p.buff.SegmentLength() == 0 && len(data) > 0 && data[0] == '/' {
			// a bare target, the 0.9-style shortest possible request. The guess
			// is provisional: an explicit version token later overwrites it, and
			// until then errors render in the 0.9 form
			request.Proto = proto.HTTP09
			p.state = ePath
			goto path
		}

		sp := bytes.IndexByte(data, ' ')
		if sp == -1 {
			if bytes.IndexByte(data, '\r') != -1 || bytes.IndexByte(data, '\n') != -1 {
				return transport.Error, nil, status.ErrMalformedRequestLine
			}

			if !p.buff.Append(data) {
				return transport.Error, nil, status.ErrMalformedMethod
			}

			if p.buff.SegmentLength() > config.MaxMethodLength {
				return transport.Error, nil, status.ErrMalformedMethod
			}

			return transport.Pending, nil, nil
		}

		if bytes.IndexByte(data[:sp], '\r') != -1 || bytes.IndexByte(data[:sp], '\n') != -1 {
			return transport.Error, nil, status.ErrMalformedRequestLine
		}

		if !p.buff.Append(data[:sp]) {
			return transport.Error, nil, status.ErrMalformedMethod
		}

		if p.buff.SegmentLength() > config.MaxMethodLength {
			return transport.Error, nil, status.ErrMalformedMethod
		}

		p.methodView = p.buff.Finish()
		if len(p.methodView) == 0 {
			return transport.Error, nil, status.ErrMalformedMethod
		}

		data = data[sp+1:]
		p.state = ePath
		goto path
	}

path:
	for i := 0; i < len(data); i++ {
		switch c := data[i]; c {
		case ' ':
			if err = p.appendPath(data[:i]); err != nil {
				return transport.Error, nil, err
			}

			p.pathLen = p.buff.SegmentLength()
			if err = p.checkPath(); err != nil {
				return transport.Error, nil, err
			}

			p.targetView = p.buff.Finish()
			data = data[i+1:]
			p.state = eProto
			goto protocol
		case '?':
			if err = p.appendPath(data[:i]); err != nil {
				return transport.Error, nil, err
			}

			p.pathLen = p.buff.SegmentLength()
			if err = p.checkPath(); err != nil {
				return transport.Error, nil, err
			}

			if !p.buff.AppendByte('?') {
				return transport.Error, nil, status.ErrURLTooLong
			}

			p.lastTargetByte = '?'
			data = data[i+1:]
			p.state = eQuery
			goto query
		case '\r':
			if err = p.appendPath(data[:i]); err != nil {
				return transport.Error, nil, err
			}

			p.pathLen = p.buff.SegmentLength()
			if err = p.checkPath(); err != nil {
				return transport.Error, nil, err
			}

			p.targetView = p.buff.Finish()
			request.Proto = proto.HTTP09
			data = data[i+1:]
			p.state = eProtoLF
			goto protocolLF
		case '\n':
			return transport.Error, nil, status.ErrMalformedRequestLine
		case '/':
			if p.targetByte(i, data) == '/' {
				return transport.Error, nil, status.ErrDoubleSlash
			}
		default:
			if c < 0x20 || c == 0x7f {
				return transport.Error, nil, status.ErrBadURL
			}
		}
	}

	if err = p.appendPath(data); err != nil {
		return transport.Error, nil, err
	}

	return transport.Pending, nil, nil

query:
	for i := 0; i < len(data); i++ {
		switch c := data[i]; c {
		case ' ':
			if err = p.appendQuery(data[:i]); err != nil {
				return transport.Error, nil, err
			}

			p.targetView = p.buff.Finish()
			data = data[i+1:]
			p.state = eProto
			goto protocol
		case '\r':
			if err = p.appendQuery(data[:i]); err != nil {
				return transport.Error, nil, err
			}

			p.targetView = p.buff.Finish()
			request.Proto = proto.HTTP09
			data = data[i+1:]
			p.state = eProtoLF
			goto protocolLF
		case '\n':
			return transport.Error, nil, status.ErrMalformedRequestLine
		case '/':
			// the double slash ban covers the whole target, not just the path:
			// a query smuggling one is just as malformed
			if p.targetByte(i, data) == '/' {
				return transport.Error, nil, status.ErrDoubleSlash
			}
		default:
			if c < 0x20 || c == 0x7f {
				return transport.Error, nil, status.ErrBadQuery
			}
		}
	}

	if err = p.appendQuery(data); err != nil {
		return transport.Error, nil, err
	}

	return transport.Pending, nil, nil

protocol:
	{
		// the target segment was finished on the way here, so the version token
		// gets one of its own
		cr := bytes.IndexByte(data, '\r')
		if cr == -1 {
			if bytes.IndexByte(data, '\n') != -1 {
				return transport.Error, nil, status.ErrMalformedRequestLine
			}

			if !p.buff.Append(data) || p.protoLength() > maxProtoLength {
				return transport.Error, nil, status.ErrBadVersion
			}

			return transport.Pending, nil, nil
		}

		if bytes.IndexByte(data[:cr], '\n') != -1 {
			return transport.Error, nil, status.ErrMalformedRequestLine
		}

		if !p.buff.Append(data[:cr]) || p.protoLength() > maxProtoLength {
			return transport.Error, nil, status.ErrBadVersion
		}

		token := p.takeProto()
		protocol, wellFormed := proto.Choose(uf.B2S(token))
		if !wellFormed {
			return transport.Error, nil, status.ErrBadVersion
		}

		if protocol == proto.Unknown {
			return transport.Error, nil, status.ErrUnsupportedVersion
		}

		request.Proto = protocol
		data = data[cr+1:]
		p.state = eProtoLF
		goto protocolLF
	}

protocolLF:
	{
		if len(data) == 0 {
			return transport.Pending, nil, nil
		}

		if data[0] != '\n' {
			return transport.Error, nil, status.ErrMalformedRequestLine
		}

		data = data[1:]

		if request.Proto == proto.HTTP09 {
			if !p.cfg.HTTP09.Enabled {
				return transport.Error, nil, status.ErrMalformedRequestLine
			}

			if err = p.completeRequestLine(); err != nil {
				return transport.Error, nil, err
			}

			p.complete()

			return transport.RequestCompleted, data, nil
		}

		if err = p.completeRequestLine(); err != nil {
			return transport.Error, nil, err
		}

		p.state = eHeaderKey
		goto headerKey
	}

headerKey:
	{
		if len(data) == 0 {
			return transport.Pending, nil, nil
		}

		if p.buff.SegmentLength() == 0 {
			switch data[0] {
			case '\r':
				data = data[1:]
				p.state = eFinalLF
				goto finalLF
			case '\n':
				return transport.Error, nil, status.ErrMalformedHeader
			}
		}

		colon := bytes.IndexByte(data, ':')
		if colon == -1 {
			if bytes.IndexByte(data, '\r') != -1 || bytes.IndexByte(data, '\n') != -1 {
				return transport.Error, nil, status.ErrMalformedHeader
			}

			if !p.buff.Append(data) || p.buff.SegmentLength() > p.cfg.Headers.MaxKeyLength {
				return transport.Error, nil, status.ErrHeaderFieldTooLarge
			}

			return transport.Pending, nil, nil
		}

		if bytes.IndexByte(data[:colon], '\r') != -1 || bytes.IndexByte(data[:colon], '\n') != -1 {
			return transport.Error, nil, status.ErrMalformedHeader
		}

		if !p.buff.Append(data[:colon]) || p.buff.SegmentLength() > p.cfg.Headers.MaxKeyLength {
			return transport.Error, nil, status.ErrHeaderFieldTooLarge
		}

		key := p.buff.Finish()
		if len(key) == 0 {
			return transport.Error, nil, status.ErrMalformedHeader
		}

		if !utf8.Valid(key) {
			return transport.Error, nil, status.ErrInvalidEncoding
		}

		if p.headersCount++; p.headersCount > p.cfg.Headers.MaxCount {
			return transport.Error, nil, status.ErrTooManyHeaders
		}

		p.headerKey = uf.B2S(key)
		data = data[colon+1:]
		p.state = eHeaderSpace
		goto headerSpace
	}

headerSpace:
	{
		if len(data) == 0 {
			return transport.Pending, nil, nil
		}

		// exactly one space after the colon, everything else is malformed
		if data[0] != ' ' {
			return transport.Error, nil, status.ErrMalformedHeader
		}

		data = data[1:]
		p.state = eHeaderValue
		goto headerValue
	}

headerValue:
	{
		cr := bytes.IndexByte(data, '\r')
		if cr == -1 {
			if bytes.IndexByte(data, '\n') != -1 {
				return transport.Error, nil, status.ErrMalformedHeader
			}

			if !p.buff.Append(data) || p.buff.SegmentLength() > p.cfg.Headers.MaxValueLength {
				return transport.Error, nil, status.ErrHeaderFieldTooLarge
			}

			return transport.Pending, nil, nil
		}

		if bytes.IndexByte(data[:cr], '\n') != -1 {
			return transport.Error, nil, status.ErrMalformedHeader
		}

		if !p.buff.Append(data[:cr]) || p.buff.SegmentLength() > p.cfg.Headers.MaxValueLength {
			return transport.Error, nil, status.ErrHeaderFieldTooLarge
		}

		data = data[cr+1:]
		p.state = eHeaderValueLF
		goto headerValueLF
	}

headerValueLF:
	{
		if len(data) == 0 {
			return transport.Pending, nil, nil
		}

		if data[0] != '\n' {
			return transport.Error, nil, status.ErrMalformedHeader
		}

		value := p.buff.Finish()
		if !utf8.Valid(value) {
			return transport.Error, nil, status.ErrInvalidEncoding
		}

		if err = p.commitHeader(p.headerKey, uf.B2S(value)); err != nil {
			return transport.Error, nil, err
		}

		data = data[1:]
		p.state = eHeaderKey
		goto headerKey
	}

finalLF:
	{
		if len(data) == 0 {
			return transport.Pending, nil, nil
		}

		if data[0] != '\n' {
			return transport.Error, nil, status.ErrMalformedHeader
		}

		data = data[1:]

		switch {
		case p.chunked:
			p.state = eChunkedBody
			goto chunkedBody
		case p.contentLength > 0:
			p.bodyLeft = p.contentLength
			p.state = eBody
			goto body
		default:
			p.complete()

			return transport.RequestCompleted, data, nil
		}
	}

body:
	{
		take := len(data)
		if take > p.bodyLeft {
			take = p.bodyLeft
		}

		if !p.buff.Append(data[:take]) {
			return transport.Error, nil, status.ErrBodyTooLarge
		}

		p.bodyLeft -= take
		if p.bodyLeft > 0 {
			return transport.Pending, nil, nil
		}

		request.Body = p.buff.Finish()
		p.complete()

		return transport.RequestCompleted, data[take:], nil
	}

chunkedBody:
	for {
		chunk, rest, chunkErr := p.chunkedParser.Parse(data, false)
		switch chunkErr {
		case nil, io.EOF:
		default:
			return transport.Error, nil, status.ErrBadChunk
		}

		if !p.buff.Append(chunk) || p.buff.SegmentLength() > p.cfg.Body.MaxSize {
			return transport.Error, nil, status.ErrBodyTooLarge
		}

		if chunkErr == io.EOF {
			request.Body = p.buff.Finish()
			p.complete()

			return transport.RequestCompleted, rest, nil
		}

		if len(rest) == 0 {
			return transport.Pending, nil, nil
		}

		data = rest
	}

	// unreachable
}

// appendPath stages more path bytes, enforcing the path length cap.
func (p *Parser) appendPath(piece []byte) error {
	if !p.buff.Append(piece) || p.buff.SegmentLength() > p.cfg.URI.MaxLength {
		return status.ErrURLTooLong
	}

	p.recordLastTargetByte()

	return nil
}

// targetByte returns the byte preceding data[i], falling back to the staged
// segment when i is the chunk's first byte.
func (p *Parser) targetByte(i int, data []byte) byte {
	if i > 0 {
		return data[i-1]
	}

	return p.lastTargetByte
}

func (p *Parser) recordLastTargetByte() {
	if n := p.buff.SegmentLength(); n > 0 {
		p.lastTargetByte = p.buff.Preview()[n-1]
	}
}

func (p *Parser) checkPath() error {
	path := p.buff.Preview()
	if len(path) == 0 || path[0] != '/' {
		return status.ErrBadURL
	}

	return nil
}

func (p *Parser) appendQuery(piece []byte) error {
	if !p.buff.Append(piece) {
		return status.ErrQueryTooLong
	}

	if p.buff.SegmentLength()-p.pathLen-1 > p.cfg.URI.Query.MaxLength {
		return status.ErrQueryTooLong
	}

	p.recordLastTargetByte()

	return nil
}

// protoLength is the version token staged so far. The target segment was
// finished before the token started, so the segment is the token.
func (p *Parser) protoLength() int {
	return p.buff.SegmentLength()
}

func (p *Parser) takeProto() []byte {
	return p.buff.Finish()
}

// completeRequestLine validates the accumulated request line and decomposes
// the target. For HTTP/0.9 it also applies the /keep_alive/ convention: the
// prefix requests persistence and is stripped from the target.
func (p *Parser) completeRequestLine() error {
	request := p.request

	if len(p.methodView) == 0 {
		if request.Proto != proto.HTTP09 {
			return status.ErrMalformedRequestLine
		}

		request.Method = method.GET
	} else {
		if !utf8.Valid(p.methodView) {
			return status.ErrInvalidEncoding
		}

		request.Method = method.New(p.methodView)
	}

	target := p.takeTarget()
	pathLen := p.pathLen

	if !utf8.Valid(target) {
		return status.ErrInvalidEncoding
	}

	if request.Proto == proto.HTTP09 && bytes.HasPrefix(target, uf.S2B(keepAlivePrefix)) {
		request.KeptAlive09 = true
		strip := len(keepAlivePrefix) - 1
		target = target[strip:]
		pathLen -= strip
	}

	return request.URL.Parse(uf.B2S(target), pathLen)
}

func (p *Parser) takeTarget() []byte {
	return p.targetView
}

func (p *Parser) commitHeader(key, value string) error {
	p.request.Headers.Add(key, value)

	switch {
	case strcomp.EqualFold(key, "content-length"):
		return p.parseContentLength(value)
	case strcomp.EqualFold(key, "transfer-encoding"):
		if !strcomp.EqualFold(value, "chunked") {
			return status.ErrMalformedHeader
		}

		p.chunked = true
	case strcomp.EqualFold(key, "connection"):
		p.request.Connection = value
	}

	return nil
}

func (p *Parser) parseContentLength(value string) error {
	if len(value) == 0 || len(value) > 10 {
		return status.ErrBadContentLength
	}

	var length int
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c < '0' || c > '9' {
			return status.ErrBadContentLength
		}

		length = length*10 + int(c-'0')
	}

	if length > p.cfg.Body.MaxSize {
		return status.ErrBodyTooLarge
	}

	p.contentLength = length
	p.request.ContentLength = length

	return nil
}

// complete rewinds the state machine for the next pipelined request. The
// buffer keeps the current request's views alive until Reset.
func (p *Parser) complete() {
	p.request.Chunked = p.chunked

	p.state = eMethod
	p.methodView = nil
	p.targetView = nil
	p.headerKey = ""
	p.pathLen = 0
	p.lastTargetByte = 0
	p.headersCount = 0
	p.contentLength = 0
	p.bodyLeft = 0
	p.chunked = false
}
