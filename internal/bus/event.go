package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the store and the send pipeline. Subscribers
// filter by namespace prefix, e.g. "draft." or "outbox.".
const (
	KindDraftUpdated      = "draft.updated"
	KindOutboxUpdated     = "outbox.updated"
	KindSelectionUpdated  = "selection.updated"
	KindEditingUpdated    = "editing.updated"
	KindAttachmentAdded   = "attachment.added"
	KindAttachmentRemoved = "attachment.removed"
	KindSendAck           = "outbox.send_ack"
	KindSendFailed        = "outbox.send_failed"
)

// ChannelChange is the payload for draft.updated and outbox.updated events.
type ChannelChange struct {
	ChannelID string
	Version   uint64
}

// SendResult is the payload for outbox.send_ack and outbox.send_failed events.
type SendResult struct {
	ChannelID      string
	IdempotencyKey string
	Error          string
}

// AttachmentChange is the payload for attachment.* events.
type AttachmentChange struct {
	ChannelID string
	FileID    string
}
