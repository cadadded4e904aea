package store

import "github.com/pvieira94/courier/internal/bus"

// PendingMessages returns the channel's outbox entries in send order.
// Empty when nothing is pending.
func (s *Store) PendingMessages(channelID string) []UnsentMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.snap.outbox[channelID]
	out := make([]UnsentMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m.clone()
	}
	return out
}

// AppendUnsent appends a new entry at the tail of the channel's outbox.
func (s *Store) AppendUnsent(channelID string, msg UnsentMessage) {
	s.commit(bus.KindOutboxUpdated, channelID, func(snap *snapshot) bool {
		list := snap.outbox[channelID]
		next := make([]UnsentMessage, 0, len(list)+1)
		next = append(next, list...)
		next = append(next, msg.clone())
		snap.outbox[channelID] = next
		return true
	})
}

// MarkUnsentFailed transitions the entry with the given idempotency key to
// failed, preserving its payload. No-op if the key is not present.
func (s *Store) MarkUnsentFailed(channelID, idempotencyKey string) {
	s.commit(bus.KindOutboxUpdated, channelID, func(snap *snapshot) bool {
		list := snap.outbox[channelID]
		for i, m := range list {
			if m.IdempotencyKey == idempotencyKey {
				next := make([]UnsentMessage, len(list))
				copy(next, list)
				next[i].Status = StatusFailed
				snap.outbox[channelID] = next
				return true
			}
		}
		return false
	})
}

// RemoveUnsent deletes the entry with the given idempotency key.
// No-op if the key is not present.
func (s *Store) RemoveUnsent(channelID, idempotencyKey string) {
	s.commit(bus.KindOutboxUpdated, channelID, func(snap *snapshot) bool {
		list := snap.outbox[channelID]
		for i, m := range list {
			if m.IdempotencyKey == idempotencyKey {
				next := make([]UnsentMessage, 0, len(list)-1)
				next = append(next, list[:i]...)
				next = append(next, list[i+1:]...)
				if len(next) == 0 {
					delete(snap.outbox, channelID)
				} else {
					snap.outbox[channelID] = next
				}
				return true
			}
		}
		return false
	})
}

// TakeUnsent atomically removes and returns the entry with the given
// idempotency key. Used by retry to re-stage a failed attempt's payload.
func (s *Store) TakeUnsent(channelID, idempotencyKey string) (UnsentMessage, bool) {
	var taken UnsentMessage
	found := false
	s.commit(bus.KindOutboxUpdated, channelID, func(snap *snapshot) bool {
		list := snap.outbox[channelID]
		for i, m := range list {
			if m.IdempotencyKey == idempotencyKey {
				taken = m.clone()
				found = true
				next := make([]UnsentMessage, 0, len(list)-1)
				next = append(next, list[:i]...)
				next = append(next, list[i+1:]...)
				if len(next) == 0 {
					delete(snap.outbox, channelID)
				} else {
					snap.outbox[channelID] = next
				}
				return true
			}
		}
		return false
	})
	return taken, found
}
