// Package store holds the client's outbound message state: per-channel
// drafts, the per-channel outbox of in-flight and failed send attempts, and
// the transient selection/editing trackers.
//
// The whole record lives in one immutable snapshot guarded by a mutex.
// Every mutation runs as a reducer over fresh map copies and commits as a
// single version step, so readers never observe a partially applied batch
// of changes.
package store

import (
	"sync"
	"time"

	"github.com/pvieira94/courier/internal/bus"
)

// SectionMentionOnReply is the preference key for the remembered
// mention-on-reply default.
const SectionMentionOnReply = "mention_on_reply"

// Preferences is the section-state preference store consumed for the
// mention-on-reply default.
type Preferences interface {
	SectionState(key string) string
	SetSectionState(key, value string) error
}

// FileReleaser destroys an attachment cache entry and its preview resource.
// The store calls it whenever a draft stops referencing a file.
type FileReleaser interface {
	Release(id string)
}

type snapshot struct {
	drafts    map[string]DraftData
	outbox    map[string][]UnsentMessage
	selection *TextSelection
	editing   EditingState
}

// Store is the versioned in-memory record. Mutations are synchronous and
// atomic from the caller's perspective; see commit.
type Store struct {
	mu         sync.RWMutex
	version    uint64
	snap       snapshot
	prefs      Preferences
	releaser   FileReleaser
	bus        *bus.Bus
	maxReplies int
}

// New creates an empty store. maxReplies bounds replies per draft.
// The file releaser is bound later via SetFileReleaser because the
// attachment cache is constructed on top of the store.
func New(prefs Preferences, b *bus.Bus, maxReplies int) *Store {
	return &Store{
		snap: snapshot{
			drafts: make(map[string]DraftData),
			outbox: make(map[string][]UnsentMessage),
		},
		prefs:      prefs,
		bus:        b,
		maxReplies: maxReplies,
	}
}

// SetFileReleaser binds the attachment cache. Until bound, release is a
// no-op (only relevant in tests).
func (s *Store) SetFileReleaser(r FileReleaser) {
	s.mu.Lock()
	s.releaser = r
	s.mu.Unlock()
}

// Version returns the current snapshot version. It increases by exactly one
// per committed mutation, however many fields the mutation touched.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// commit runs mutate over copy-on-write views of the snapshot maps, bumps
// the version, and publishes one event of the given kind. mutate reports
// whether it changed anything; a false return discards the copies and leaves
// the version untouched. mutate must not retain references past the call.
func (s *Store) commit(kind, channelID string, mutate func(*snapshot) bool) {
	s.mu.Lock()
	next := snapshot{
		drafts:    make(map[string]DraftData, len(s.snap.drafts)),
		outbox:    make(map[string][]UnsentMessage, len(s.snap.outbox)),
		selection: s.snap.selection,
		editing:   s.snap.editing,
	}
	for k, v := range s.snap.drafts {
		next.drafts[k] = v
	}
	for k, v := range s.snap.outbox {
		next.outbox[k] = v
	}
	if !mutate(&next) {
		s.mu.Unlock()
		return
	}
	s.snap = next
	s.version++
	version := s.version
	s.mu.Unlock()

	s.publish(kind, channelID, version)
}

func (s *Store) publish(kind, channelID string, version uint64) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   bus.ChannelChange{ChannelID: channelID, Version: version},
	})
}

// release forwards to the bound releaser, if any.
func (s *Store) release(ids []string) {
	s.mu.RLock()
	r := s.releaser
	s.mu.RUnlock()
	if r == nil {
		return
	}
	for _, id := range ids {
		r.Release(id)
	}
}

// Hydrate installs a previously persisted state as the new snapshot in one
// commit. Intended for startup, before any attachments exist.
func (s *Store) Hydrate(state *State) {
	s.commit(bus.KindDraftUpdated, "", func(snap *snapshot) bool {
		snap.drafts = make(map[string]DraftData, len(state.Drafts))
		for ch, d := range state.Drafts {
			snap.drafts[ch] = d.clone()
		}
		snap.outbox = make(map[string][]UnsentMessage, len(state.Outbox))
		for ch, msgs := range state.Outbox {
			cp := make([]UnsentMessage, len(msgs))
			for i, m := range msgs {
				cp[i] = m.clone()
			}
			snap.outbox[ch] = cp
		}
		return true
	})
}

// Export returns a deep copy of the persistable state.
func (s *Store) Export() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := NewState()
	for ch, d := range s.snap.drafts {
		out.Drafts[ch] = d.clone()
	}
	for ch, msgs := range s.snap.outbox {
		cp := make([]UnsentMessage, len(msgs))
		for i, m := range msgs {
			cp[i] = m.clone()
		}
		out.Outbox[ch] = cp
	}
	return out
}
