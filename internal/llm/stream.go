package llm

// ChoiceDelta is one choice's fragment of a streamed reply. Content is empty
// when the upstream chunk carried no text for this choice.
type ChoiceDelta struct {
	Index   int
	Content string
}

// StreamEvent is one partial response received from the remote API.
type StreamEvent struct {
	Choices []ChoiceDelta
}

// HasContent reports whether any choice carries a non-empty fragment.
func (e StreamEvent) HasContent() bool {
	for _, c := range e.Choices {
		if c.Content != "" {
			return true
		}
	}
	return false
}

// EventStream is a lazy, finite, non-restartable sequence of StreamEvents in
// arrival order.
//
//	for s.Next() {
//		ev := s.Current()
//	}
//	if err := s.Err(); err != nil { ... }
type EventStream interface {
	// Next advances to the next event. It returns false when the sequence is
	// exhausted or failed; Err tells the two apart.
	Next() bool
	// Current returns the event Next advanced to.
	Current() StreamEvent
	// Err returns the error that stopped iteration, if any.
	Err() error
	// Close releases the underlying connection. Safe to call more than once.
	Close() error
}
