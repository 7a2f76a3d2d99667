package bus

import (
	"strings"
	"time"
)

// Event is one notification on the bus. ID and Seq are assigned by Publish;
// Seq grows by one per published event, so subscribers can order events and
// notice gaps left by drops.
type Event struct {
	ID        string
	Seq       uint64
	Kind      string
	Timestamp time.Time
	Payload   any
}

// HasPrefix reports whether the event kind lies in namespace. The empty
// namespace matches every kind.
func (e Event) HasPrefix(namespace string) bool {
	return strings.HasPrefix(e.Kind, namespace)
}
