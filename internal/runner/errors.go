package runner

import "fmt"

// ErrorKind classifies why a run failed.
type ErrorKind int

const (
	// KindConfig: the request configuration is missing or invalid.
	KindConfig ErrorKind = iota + 1
	// KindBuild: the message list could not be constructed from the configuration.
	KindBuild
	// KindRequest: the request could not be established or failed at transport level.
	KindRequest
	// KindMidStream: the stream reported a failure after it was opened.
	KindMidStream
	// KindTimeout: the per-request deadline expired.
	KindTimeout
	// KindOutput: writing or flushing standard output failed.
	KindOutput
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config error"
	case KindBuild:
		return "build error"
	case KindRequest:
		return "request error"
	case KindMidStream:
		return "mid-stream error"
	case KindTimeout:
		return "timeout"
	case KindOutput:
		return "output error"
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// Sentinels for errors.Is: errors.Is(err, runner.ErrMidStream) holds for any
// *Error of kind KindMidStream.
var (
	ErrConfig    = &Error{Kind: KindConfig}
	ErrBuild     = &Error{Kind: KindBuild}
	ErrRequest   = &Error{Kind: KindRequest}
	ErrMidStream = &Error{Kind: KindMidStream}
	ErrTimeout   = &Error{Kind: KindTimeout}
	ErrOutput    = &Error{Kind: KindOutput}
)

// Error is the single error type a run returns.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Op == "" && t.Kind == e.Kind
}
