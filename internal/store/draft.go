package store

import (
	"strconv"

	"github.com/pvieira94/courier/internal/bus"
)

// Draft returns the channel's draft, or an empty draft if none exists.
func (s *Store) Draft(channelID string) DraftData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.drafts[channelID].clone()
}

// HasDraft reports whether the channel has draft content. Deliberately
// checks content only: a draft holding just replies or files does not count.
func (s *Store) HasDraft(channelID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snap.drafts[channelID].Content) > 0
}

// SetDraft applies a partial update to the channel's draft. Nil fields keep
// their current value; a non-nil Replies or Files replaces the whole slice.
// A nil patch clears the draft entirely.
func (s *Store) SetDraft(channelID string, patch *DraftPatch) {
	if patch == nil {
		s.ClearDraft(channelID)
		return
	}
	s.commit(bus.KindDraftUpdated, channelID, func(snap *snapshot) bool {
		d := snap.drafts[channelID].clone()
		if patch.Content != nil {
			d.Content = *patch.Content
		}
		if patch.Replies != nil {
			d.Replies = append([]Reply(nil), (*patch.Replies)...)
		}
		if patch.Files != nil {
			d.Files = append([]string(nil), (*patch.Files)...)
		}
		setDraft(snap, channelID, d)
		return true
	})
}

// UpdateDraft applies fn to the current draft and stores the returned patch.
// A nil result clears the draft.
func (s *Store) UpdateDraft(channelID string, fn func(DraftData) *DraftPatch) {
	s.SetDraft(channelID, fn(s.Draft(channelID)))
}

// ClearDraft releases every attachment referenced by the draft, then resets
// content, replies and files to empty.
func (s *Store) ClearDraft(channelID string) {
	s.release(s.Draft(channelID).Files)
	s.commit(bus.KindDraftUpdated, channelID, func(snap *snapshot) bool {
		if _, ok := snap.drafts[channelID]; !ok {
			return false
		}
		delete(snap.drafts, channelID)
		return true
	})
}

// InsertText splices text into the draft content at the live selection and
// advances the selection to a zero-length cursor after the inserted text.
// No-op when no selection is active.
func (s *Store) InsertText(text string) {
	s.commit(bus.KindDraftUpdated, "", func(snap *snapshot) bool {
		sel := snap.selection
		if sel == nil {
			return false
		}
		d := snap.drafts[sel.ChannelID].clone()
		start, end := clampRange(sel.Start, sel.End, len(d.Content))
		d.Content = d.Content[:start] + text + d.Content[end:]
		setDraft(snap, sel.ChannelID, d)

		cursor := start + len(text)
		snap.selection = &TextSelection{ChannelID: sel.ChannelID, Start: cursor, End: cursor}
		return true
	})
}

// AddReply stages a reply to msg in the channel's draft. Idempotent: no-op
// if a reply to the same message exists or the reply list is full. The
// mention flag defaults to the remembered preference, except for replies to
// the caller's own messages.
func (s *Store) AddReply(channelID string, msg Message, selfID string) {
	mention := false
	if msg.AuthorID != selfID {
		mention = s.mentionOnReplyDefault()
	}
	s.commit(bus.KindDraftUpdated, channelID, func(snap *snapshot) bool {
		d := snap.drafts[channelID].clone()
		for _, r := range d.Replies {
			if r.MessageID == msg.ID {
				return false
			}
		}
		if len(d.Replies) >= s.maxReplies {
			return false
		}
		d.Replies = append(d.Replies, Reply{MessageID: msg.ID, Mention: mention})
		setDraft(snap, channelID, d)
		return true
	})
}

// ToggleReplyMention flips the mention flag on the reply to messageID and
// remembers the new flag as the default for subsequent replies.
func (s *Store) ToggleReplyMention(channelID, messageID string) {
	var toggled *bool
	s.commit(bus.KindDraftUpdated, channelID, func(snap *snapshot) bool {
		d := snap.drafts[channelID].clone()
		for i, r := range d.Replies {
			if r.MessageID == messageID {
				d.Replies[i].Mention = !r.Mention
				v := d.Replies[i].Mention
				toggled = &v
				setDraft(snap, channelID, d)
				return true
			}
		}
		return false
	})
	if toggled != nil {
		_ = s.prefs.SetSectionState(SectionMentionOnReply, strconv.FormatBool(*toggled))
	}
}

// RemoveReply drops the reply to messageID from the channel's draft.
func (s *Store) RemoveReply(channelID, messageID string) {
	s.commit(bus.KindDraftUpdated, channelID, func(snap *snapshot) bool {
		d := snap.drafts[channelID].clone()
		for i, r := range d.Replies {
			if r.MessageID == messageID {
				d.Replies = append(d.Replies[:i], d.Replies[i+1:]...)
				setDraft(snap, channelID, d)
				return true
			}
		}
		return false
	})
}

// PopFromDraft removes the most recently added reply, or if there is none,
// the most recently added file (releasing its cache entry). Returns false
// when the draft has neither.
func (s *Store) PopFromDraft(channelID string) bool {
	removed := false
	var releasedFile string
	s.commit(bus.KindDraftUpdated, channelID, func(snap *snapshot) bool {
		d := snap.drafts[channelID].clone()
		switch {
		case len(d.Replies) > 0:
			d.Replies = d.Replies[:len(d.Replies)-1]
		case len(d.Files) > 0:
			releasedFile = d.Files[len(d.Files)-1]
			d.Files = d.Files[:len(d.Files)-1]
		default:
			return false
		}
		removed = true
		setDraft(snap, channelID, d)
		return true
	})
	if releasedFile != "" {
		s.release([]string{releasedFile})
	}
	return removed
}

// HasAdditionalElements reports whether the draft carries replies or files
// beyond its text content.
func (s *Store) HasAdditionalElements(channelID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.snap.drafts[channelID]
	return len(d.Replies) > 0 || len(d.Files) > 0
}

// AttachFile appends an attachment cache id to the channel's draft.
// Called by the attachment cache after staging a file.
func (s *Store) AttachFile(channelID, fileID string) {
	s.commit(bus.KindDraftUpdated, channelID, func(snap *snapshot) bool {
		d := snap.drafts[channelID].clone()
		d.Files = append(d.Files, fileID)
		setDraft(snap, channelID, d)
		return true
	})
}

// DetachFile removes an attachment cache id from the channel's draft without
// releasing the cache entry.
func (s *Store) DetachFile(channelID, fileID string) {
	s.commit(bus.KindDraftUpdated, channelID, func(snap *snapshot) bool {
		d := snap.drafts[channelID].clone()
		for i, f := range d.Files {
			if f == fileID {
				d.Files = append(d.Files[:i], d.Files[i+1:]...)
				setDraft(snap, channelID, d)
				return true
			}
		}
		return false
	})
}

// PopDraft atomically extracts the sendable payload from the channel's
// draft. At most maxFiles attachments are popped; any excess becomes the new
// draft so it rolls into the next message. Returns an empty payload when
// there is nothing to send.
func (s *Store) PopDraft(channelID string, maxFiles int) DraftData {
	var payload DraftData
	s.commit(bus.KindDraftUpdated, channelID, func(snap *snapshot) bool {
		d := snap.drafts[channelID].clone()
		payload = d
		if d.Empty() {
			return false
		}
		if len(d.Files) > maxFiles {
			payload.Files = d.Files[:maxFiles]
			snap.drafts[channelID] = DraftData{Files: append([]string(nil), d.Files[maxFiles:]...)}
			return true
		}
		delete(snap.drafts, channelID)
		return true
	})
	return payload
}

// mentionOnReplyDefault reads the remembered preference; unset means true.
func (s *Store) mentionOnReplyDefault() bool {
	v := s.prefs.SectionState(SectionMentionOnReply)
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

// setDraft installs d for the channel, dropping the entry entirely when the
// draft is empty (empty draft ≡ no draft).
func setDraft(snap *snapshot, channelID string, d DraftData) {
	if d.Empty() {
		delete(snap.drafts, channelID)
		return
	}
	snap.drafts[channelID] = d
}

// clampRange bounds a [start, end) selection to a string of length n.
func clampRange(start, end, n int) (int, int) {
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	if end < start {
		end = start
	}
	if end > n {
		end = n
	}
	return start, end
}
