package http

import (
	"github.com/indigo-web/utils/uf"

	"github.com/maker-web/maker/http/status"
	"github.com/maker-web/maker/kv"
)

// Fields is the rendered-from state of a response, revealed to the serializer.
type Fields struct {
	Code    status.Code
	Status  string
	Headers []kv.Pair
	Body    []byte
	// BodyWriter, when set, computes the body straight into the staging
	// buffer instead of referencing ready-made bytes.
	BodyWriter func(buff []byte) []byte
}

// Response is a builder the handler fills in. It is owned by the connection
// and reused for every request served on it, so the same view validity rules
// as for Request apply.
type Response struct {
	fields Fields
}

const preallocResponseHeaders = 8

func NewResponse() *Response {
	return &Response{
		fields: Fields{
			Code:    status.OK,
			Headers: make([]kv.Pair, 0, preallocResponseHeaders),
		},
	}
}

// Code sets the response code. The standard reason phrase is looked up
// automatically.
func (r *Response) Code(code status.Code) *Response {
	r.fields.Code = code
	return r
}

// Status overrides the reason phrase. Not recommended, has no effect for
// HTTP/0.9 responses.
func (r *Response) Status(text string) *Response {
	r.fields.Status = text
	return r
}

// Header appends a response header. Duplicates are rendered as-is, in order.
func (r *Response) Header(key, value string) *Response {
	r.fields.Headers = append(r.fields.Headers, kv.Pair{Key: key, Value: value})
	return r
}

// Body sets the response body to the given bytes. The bytes are not copied
// until serialization.
func (r *Response) Body(body []byte) *Response {
	r.fields.Body = body
	r.fields.BodyWriter = nil
	return r
}

// String sets the response body to the given string.
func (r *Response) String(body string) *Response {
	// strings are immutable and rendering only reads, so the unsafe view is fine
	r.fields.Body = uf.S2B(body)
	r.fields.BodyWriter = nil
	return r
}

// BodyWith defers the body to a callback appending into the staging buffer,
// avoiding any intermediate storage for computed payloads.
func (r *Response) BodyWith(writer func(buff []byte) []byte) *Response {
	r.fields.Body = nil
	r.fields.BodyWriter = writer
	return r
}

// Reveal exposes the accumulated state. Used by the serializer, of no value
// for handlers.
func (r *Response) Reveal() Fields {
	return r.fields
}

// Clear returns the builder to its initial state, keeping allocated storage.
func (r *Response) Clear() *Response {
	r.fields.Code = status.OK
	r.fields.Status = ""
	r.fields.Headers = r.fields.Headers[:0]
	r.fields.Body = nil
	r.fields.BodyWriter = nil
	return r
}
