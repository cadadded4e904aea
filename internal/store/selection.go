package store

import "github.com/pvieira94/courier/internal/bus"

// SetSelection overwrites the single global text selection. There is at most
// one live selection across all channels.
func (s *Store) SetSelection(channelID string, start, end int) {
	s.commit(bus.KindSelectionUpdated, channelID, func(snap *snapshot) bool {
		snap.selection = &TextSelection{ChannelID: channelID, Start: start, End: end}
		return true
	})
}

// Selection returns the live selection, if any.
func (s *Store) Selection() (TextSelection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.selection == nil {
		return TextSelection{}, false
	}
	return *s.snap.selection, true
}

// ClearSelection drops the live selection.
func (s *Store) ClearSelection() {
	s.commit(bus.KindSelectionUpdated, "", func(snap *snapshot) bool {
		if snap.selection == nil {
			return false
		}
		snap.selection = nil
		return true
	})
}

// SetEditingMessage records msg as the message under edit and snapshots its
// content into the editing content slot. Both fields change in one commit,
// so observers never see the id without the content. A nil msg clears the
// edit state.
func (s *Store) SetEditingMessage(msg *Message) {
	s.commit(bus.KindEditingUpdated, "", func(snap *snapshot) bool {
		if msg == nil {
			snap.editing = EditingState{}
			return true
		}
		snap.editing = EditingState{MessageID: msg.ID, Content: msg.Content}
		return true
	})
}

// SetEditingNewest records the "load the most recent message for editing"
// sentinel and clears the content slot.
func (s *Store) SetEditingNewest() {
	s.commit(bus.KindEditingUpdated, "", func(snap *snapshot) bool {
		snap.editing = EditingState{Newest: true}
		return true
	})
}

// SetEditingMessageContent updates only the content under edit.
func (s *Store) SetEditingMessageContent(content string) {
	s.commit(bus.KindEditingUpdated, "", func(snap *snapshot) bool {
		snap.editing.Content = content
		return true
	})
}

// Editing returns the current editing state.
func (s *Store) Editing() EditingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.editing
}
