package store

// Contact is one entry of the roster snapshot.
type Contact struct {
	JID      string
	Name     string
	PushName string
}

// DisplayName prefers the address book name over the push name.
func (c Contact) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.PushName
}

// Outbox statuses.
const (
	OutboxQueued  = "queued"
	OutboxSending = "sending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	TargetJID    string
	MsgType      int
	Body         string
	Status       string
	Attempts     int
	ErrorMessage string
	ServerMsgID  string
}
