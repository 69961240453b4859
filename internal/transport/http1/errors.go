package http1

import (
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/maker-web/maker/http/proto"
	"github.com/maker-web/maker/http/status"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Formatter maps engine failures to ready-to-send responses. Everything is
// rendered once at startup, so the failure paths (including the overload one)
// stay allocation-free. Error responses always carry "connection: close", as
// no failure is survivable within a connection.
type Formatter struct {
	http1  map[error][]byte
	http09 map[error][]byte
	// generic is sent for errors nobody pre-rendered, which would be a bug
	// somewhere else
	generic []byte
}

func NewFormatter(jsonErrors bool) *Formatter {
	f := &Formatter{
		http1:  make(map[error][]byte, len(status.Renderable)),
		http09: make(map[error][]byte, len(status.Renderable)),
	}

	for _, err := range status.Renderable {
		he := err.(status.HTTPError)
		f.http1[err] = renderError(he, jsonErrors)
		f.http09[err] = renderError09(he)
	}

	f.generic = f.http1[status.ErrIO]

	return f
}

// Render returns the wire form of the error for the protocol the request came
// in with. The returned slice is shared and must only be written, never
// modified.
func (f *Formatter) Render(target proto.Proto, err error) []byte {
	cache := f.http1
	if target == proto.HTTP09 {
		cache = f.http09
	}

	if response, found := cache[err]; found {
		return response
	}

	return f.generic
}

// Overload is the pre-rendered 503 the admission responders send without any
// HTTP processing.
func (f *Formatter) Overload() []byte {
	return f.http1[status.ErrTooManyConnections]
}

// Rejection is the pre-rendered 403 for filtered connections.
func (f *Formatter) Rejection() []byte {
	return f.http1[status.ErrFilterRejected]
}

func renderError(he status.HTTPError, jsonErrors bool) []byte {
	response := make([]byte, 0, 256)
	response = append(response, "HTTP/1.1 "...)
	response = strconv.AppendInt(response, int64(he.Code), 10)
	response = append(response, ' ')
	response = append(response, status.Text(he.Code)...)
	response = append(response, "\r\nconnection: close\r\n"...)

	if !jsonErrors {
		return append(response, "content-length: 0\r\n\r\n"...)
	}

	body, err := jsoniter.Marshal(errorBody{Error: he.Message, Code: he.Reason})
	if err != nil {
		// two plain string fields cannot fail to marshal
		panic(err)
	}

	response = append(response, "content-type: application/json\r\ncontent-length: "...)
	response = strconv.AppendInt(response, int64(len(body)), 10)
	response = append(response, "\r\n\r\n"...)

	return append(response, body...)
}

func renderError09(he status.HTTPError) []byte {
	response := make([]byte, 0, 64)
	response = append(response, "ERROR: "...)
	response = strconv.AppendInt(response, int64(he.Code), 10)
	response = append(response, ' ')
	response = append(response, status.Text(he.Code)...)

	return append(response, '\r', '\n')
}
