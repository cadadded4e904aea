package store

// Validation of untrusted persisted state. Storage contents are decoded
// into loose any-typed values and kept only where the shape checks out;
// malformed records are dropped per-field rather than failing the load.

// RawState is persisted state before validation.
type RawState struct {
	Drafts map[string]RawDraft
	Outbox map[string][]RawUnsent
}

// RawDraft mirrors DraftData with unvalidated field types.
type RawDraft struct {
	Content any
	Replies any
	Files   any
}

// RawUnsent mirrors UnsentMessage with unvalidated field types.
type RawUnsent struct {
	IdempotencyKey any
	Status         any
	Content        any
	Replies        any
}

// Clean validates raw persisted state and returns the typed state.
//
// A draft survives only if it yields non-empty string content or a
// well-formed replies array (every element an object with a string id and a
// boolean mention flag). An outbox entry survives only if its status is one
// of the known values and both key and content are strings. Attachment ids
// are restored for drafts but not for outbox entries: the cache entries they
// pointed at died with the previous session, so attachment-bearing unsent
// messages come back text-only.
func Clean(raw *RawState) *State {
	state := NewState()
	if raw == nil {
		return state
	}

	for channelID, rd := range raw.Drafts {
		content, contentOK := rd.Content.(string)
		replies, repliesOK := cleanReplies(rd.Replies)
		if !(contentOK && content != "") && !repliesOK {
			continue
		}
		d := DraftData{Content: content, Replies: replies, Files: cleanStrings(rd.Files)}
		if d.Empty() {
			continue
		}
		state.Drafts[channelID] = d
	}

	for channelID, entries := range raw.Outbox {
		var kept []UnsentMessage
		for _, re := range entries {
			key, keyOK := re.IdempotencyKey.(string)
			status, statusOK := re.Status.(string)
			content, contentOK := re.Content.(string)
			if !keyOK || !contentOK || !statusOK || !Status(status).valid() {
				continue
			}
			replies, _ := cleanReplies(re.Replies)
			kept = append(kept, UnsentMessage{
				IdempotencyKey: key,
				Status:         Status(status),
				Content:        content,
				Replies:        replies,
			})
		}
		if len(kept) > 0 {
			state.Outbox[channelID] = kept
		}
	}

	return state
}

// cleanReplies accepts a []any of {"id": string, "mention": bool} objects.
// Reports false when v is not such an array.
func cleanReplies(v any) ([]Reply, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	replies := make([]Reply, 0, len(arr))
	for _, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			return nil, false
		}
		id, idOK := obj["id"].(string)
		mention, mentionOK := obj["mention"].(bool)
		if !idOK || !mentionOK {
			return nil, false
		}
		replies = append(replies, Reply{MessageID: id, Mention: mention})
	}
	if len(replies) == 0 {
		return nil, true
	}
	return replies, true
}

// cleanStrings keeps v only if it is an array of strings.
func cleanStrings(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		s, ok := el.(string)
		if !ok {
			return nil
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
