package store

// Status is the lifecycle state of an outbox entry.
type Status string

const (
	// StatusSending marks an attempt whose uploads or send call are in flight.
	StatusSending Status = "sending"
	// StatusUnsent marks an attempt that was staged but never issued.
	StatusUnsent Status = "unsent"
	// StatusFailed marks an attempt rejected by the transport; it stays in
	// the outbox until retried or cancelled.
	StatusFailed Status = "failed"
)

// valid reports whether s is one of the three known statuses.
func (s Status) valid() bool {
	return s == StatusSending || s == StatusUnsent || s == StatusFailed
}

// Reply references a message the draft responds to.
type Reply struct {
	MessageID string `json:"id"`
	Mention   bool   `json:"mention"`
}

// DraftData is the composition state for one channel. A draft with no
// content, no replies and no files is equivalent to no draft at all and is
// omitted from the store.
type DraftData struct {
	Content string   `json:"content,omitempty"`
	Replies []Reply  `json:"replies,omitempty"`
	Files   []string `json:"files,omitempty"`
}

// Empty reports whether the draft carries nothing.
func (d DraftData) Empty() bool {
	return d.Content == "" && len(d.Replies) == 0 && len(d.Files) == 0
}

// clone returns a copy that shares no slices with d.
func (d DraftData) clone() DraftData {
	c := DraftData{Content: d.Content}
	if len(d.Replies) > 0 {
		c.Replies = append([]Reply(nil), d.Replies...)
	}
	if len(d.Files) > 0 {
		c.Files = append([]string(nil), d.Files...)
	}
	return c
}

// DraftPatch is a partial draft update. Nil fields keep the current value;
// a non-nil Replies or Files fully replaces the previous slice.
type DraftPatch struct {
	Content *string
	Replies *[]Reply
	Files   *[]string
}

// UnsentMessage is one outbox entry: a snapshot of the draft at send time,
// keyed by the attempt's idempotency key. Entries belong to exactly one
// channel and are never shared.
type UnsentMessage struct {
	IdempotencyKey string   `json:"idempotencyKey"`
	Status         Status   `json:"status"`
	Content        string   `json:"content"`
	Replies        []Reply  `json:"replies,omitempty"`
	Files          []string `json:"files,omitempty"`
}

func (m UnsentMessage) clone() UnsentMessage {
	c := m
	if len(m.Replies) > 0 {
		c.Replies = append([]Reply(nil), m.Replies...)
	}
	if len(m.Files) > 0 {
		c.Files = append([]string(nil), m.Files...)
	}
	return c
}

// Message is the minimal shape of a channel message the store needs for
// replies and editing. Full message modeling lives with the transport layer.
type Message struct {
	ID       string
	AuthorID string
	Content  string
}

// TextSelection is the single global cursor selection. Transient; never
// persisted. Start and End are byte offsets into the draft content,
// half-open [Start, End).
type TextSelection struct {
	ChannelID string
	Start     int
	End       int
}

// EditingState tracks which message, if any, is being edited, plus a
// snapshot of the content under edit. At most one of MessageID / Newest is
// set; both zero means no edit in progress.
type EditingState struct {
	MessageID string
	// Newest means "load the most recent message for editing"; the concrete
	// message id is not known yet.
	Newest  bool
	Content string
}

// State is the persistable portion of the store: drafts and outbox only.
// Attachments, selection and editing state never survive the session.
type State struct {
	Drafts map[string]DraftData
	Outbox map[string][]UnsentMessage
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Drafts: make(map[string]DraftData),
		Outbox: make(map[string][]UnsentMessage),
	}
}
