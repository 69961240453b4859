package transport

// RequestState is what a single feeding of bytes advanced the parser to.
type RequestState uint8

const (
	// Pending means the bytes were consumed but the request isn't complete yet.
	Pending RequestState = iota + 1
	// RequestCompleted means a full request is available; unconsumed bytes are
	// handed back as extra for the next pipelined request.
	RequestCompleted
	// Error means the request is unsalvageable and the connection must close
	// after the error response.
	Error
)

type Parser interface {
	Parse(b []byte) (state RequestState, extra []byte, err error)
}

type Writer interface {
	Write([]byte) error
}
