package url

import (
	"github.com/maker-web/maker/http/status"
)

type Param struct {
	Key, Value string
}

// URL is a zero-copy decomposition of a request target. Every string in here
// is a view into the connection's request buffer, valid only until the buffer
// is reused for the next request. Values stay raw: no percent-decoding is
// performed, so a view never materializes new storage.
type URL struct {
	target   string
	pathEnd  int
	segments []string
	params   []Param
}

// New pre-allocates the segment and parameter storage, so parsing any target
// within the limits allocates nothing.
func New(maxSegments, maxParams int) *URL {
	return &URL{
		segments: make([]string, 0, maxSegments),
		params:   make([]Param, 0, maxParams),
	}
}

// Parse decomposes a target whose path part is target[:pathEnd] and whose
// query string, if any, follows. The path is expected to be well-formed
// already (leading slash, no consecutive slashes); only the limits and query
// shape are checked here.
func (u *URL) Parse(target string, pathEnd int) error {
	u.target = target
	u.pathEnd = pathEnd

	if err := u.splitSegments(u.Path()); err != nil {
		return err
	}

	return u.splitParams(u.RawQuery())
}

// Target returns the full request target, query string included.
func (u *URL) Target() string {
	return u.target
}

// Path returns the path part only.
func (u *URL) Path() string {
	return u.target[:u.pathEnd]
}

// RawQuery returns the query string without the question mark, or an empty
// string.
func (u *URL) RawQuery() string {
	if u.pathEnd >= len(u.target) {
		return ""
	}

	return u.target[u.pathEnd+1:]
}

// Segments returns the slash-separated path segments. The root path has none;
// a trailing slash doesn't produce an empty segment.
func (u *URL) Segments() []string {
	return u.segments
}

// Segment returns the i-th path segment, or an empty string if there's no such.
func (u *URL) Segment(i int) string {
	if i < 0 || i >= len(u.segments) {
		return ""
	}

	return u.segments[i]
}

// Count returns the number of path segments.
func (u *URL) Count() int {
	return len(u.segments)
}

// Equal reports whether the path consists of exactly the given segments.
func (u *URL) Equal(parts ...string) bool {
	if len(parts) != len(u.segments) {
		return false
	}

	return u.HasPrefix(parts...)
}

// HasPrefix reports whether the path starts with the given segments.
func (u *URL) HasPrefix(parts ...string) bool {
	if len(parts) > len(u.segments) {
		return false
	}

	for i, part := range parts {
		if u.segments[i] != part {
			return false
		}
	}

	return true
}

// HasSuffix reports whether the path ends with the given segments.
func (u *URL) HasSuffix(parts ...string) bool {
	if len(parts) > len(u.segments) {
		return false
	}

	offset := len(u.segments) - len(parts)
	for i, part := range parts {
		if u.segments[offset+i] != part {
			return false
		}
	}

	return true
}

// Query returns the value of the named query parameter and whether it is
// present. A parameter without an equals sign is present with an empty value.
func (u *URL) Query(key string) (value string, found bool) {
	for _, param := range u.params {
		if param.Key == key {
			return param.Value, true
		}
	}

	return "", false
}

// QueryOr returns the named parameter's value, or the fallback.
func (u *URL) QueryOr(key, or string) string {
	value, found := u.Query(key)
	if !found {
		return or
	}

	return value
}

// Params exposes the parsed query parameters in arrival order.
func (u *URL) Params() []Param {
	return u.params
}

// Reset drops all the views, keeping the allocated storage.
func (u *URL) Reset() {
	u.target = ""
	u.pathEnd = 0
	u.segments = u.segments[:0]
	u.params = u.params[:0]
}

func (u *URL) splitSegments(path string) error {
	u.segments = u.segments[:0]

	begin := 1
	for i := 1; i < len(path); i++ {
		if path[i] != '/' {
			continue
		}

		if len(u.segments) == cap(u.segments) {
			return status.ErrURLTooLong
		}

		u.segments = append(u.segments, path[begin:i])
		begin = i + 1
	}

	if begin < len(path) {
		if len(u.segments) == cap(u.segments) {
			return status.ErrURLTooLong
		}

		u.segments = append(u.segments, path[begin:])
	}

	return nil
}

func (u *URL) splitParams(query string) error {
	u.params = u.params[:0]
	if len(query) == 0 {
		return nil
	}

	for begin := 0; begin <= len(query); {
		end := begin
		for end < len(query) && query[end] != '&' {
			end++
		}

		if err := u.addParam(query[begin:end]); err != nil {
			return err
		}

		begin = end + 1
	}

	return nil
}

func (u *URL) addParam(pair string) error {
	if len(pair) == 0 {
		return nil
	}

	key, value := pair, ""
	for i := 0; i < len(pair); i++ {
		if pair[i] == '=' {
			key, value = pair[:i], pair[i+1:]
			break
		}
	}

	if len(key) == 0 {
		return status.ErrBadQuery
	}

	if len(u.params) == cap(u.params) {
		return status.ErrQueryTooLong
	}

	u.params = append(u.params, Param{Key: key, Value: value})

	return nil
}
