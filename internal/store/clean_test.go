package store

import (
	"reflect"
	"testing"
)

func TestCleanNil(t *testing.T) {
	got := Clean(nil)
	if !reflect.DeepEqual(got, NewState()) {
		t.Errorf("Clean(nil) = %+v, want empty state", got)
	}
}

func TestCleanDefaultRoundTrip(t *testing.T) {
	raw := &RawState{
		Drafts: make(map[string]RawDraft),
		Outbox: make(map[string][]RawUnsent),
	}
	if got := Clean(raw); !reflect.DeepEqual(got, NewState()) {
		t.Errorf("Clean(default) = %+v, want default", got)
	}
}

func TestCleanKeepsValidDraft(t *testing.T) {
	raw := &RawState{
		Drafts: map[string]RawDraft{
			"c1": {
				Content: "hello",
				Replies: []any{map[string]any{"id": "m1", "mention": true}},
				Files:   []any{"f1"},
			},
		},
	}

	got := Clean(raw)
	d, ok := got.Drafts["c1"]
	if !ok {
		t.Fatal("valid draft dropped")
	}
	if d.Content != "hello" {
		t.Errorf("content = %q, want hello", d.Content)
	}
	if len(d.Replies) != 1 || d.Replies[0].MessageID != "m1" || !d.Replies[0].Mention {
		t.Errorf("replies = %+v, want [{m1 true}]", d.Replies)
	}
	if len(d.Files) != 1 || d.Files[0] != "f1" {
		t.Errorf("files = %v, want [f1]", d.Files)
	}
}

func TestCleanDropsContentlessMalformedDraft(t *testing.T) {
	raw := &RawState{
		Drafts: map[string]RawDraft{
			"empty":       {Content: ""},
			"bad-replies": {Content: "", Replies: []any{map[string]any{"id": 42}}},
			"not-array":   {Content: "", Replies: "nope"},
			"non-string":  {Content: 7},
		},
	}

	got := Clean(raw)
	if len(got.Drafts) != 0 {
		t.Errorf("Drafts = %+v, want all dropped", got.Drafts)
	}
}

func TestCleanKeepsContentDespiteMalformedReplies(t *testing.T) {
	raw := &RawState{
		Drafts: map[string]RawDraft{
			"c1": {Content: "keep me", Replies: []any{"garbage"}},
		},
	}

	got := Clean(raw)
	d, ok := got.Drafts["c1"]
	if !ok {
		t.Fatal("draft with valid content dropped over malformed replies")
	}
	if d.Content != "keep me" || d.Replies != nil {
		t.Errorf("draft = %+v, want content kept and replies dropped", d)
	}
}

func TestCleanKeepsRepliesOnlyDraft(t *testing.T) {
	raw := &RawState{
		Drafts: map[string]RawDraft{
			"c1": {Content: "", Replies: []any{map[string]any{"id": "m1", "mention": false}}},
		},
	}

	got := Clean(raw)
	if _, ok := got.Drafts["c1"]; !ok {
		t.Fatal("replies-only draft dropped")
	}
}

func TestCleanOutboxValidation(t *testing.T) {
	raw := &RawState{
		Outbox: map[string][]RawUnsent{
			"c1": {
				{IdempotencyKey: "k1", Status: "failed", Content: "good"},
				{IdempotencyKey: "k2", Status: "shipped", Content: "bad status"},
				{IdempotencyKey: 99, Status: "failed", Content: "bad key"},
				{IdempotencyKey: "k4", Status: "failed", Content: 12},
				{IdempotencyKey: "k5", Status: "sending", Content: "also good"},
			},
			"c2": {
				{IdempotencyKey: "x", Status: nil, Content: "dropped"},
			},
		},
	}

	got := Clean(raw)
	kept := got.Outbox["c1"]
	if len(kept) != 2 {
		t.Fatalf("kept %d entries, want 2: %+v", len(kept), kept)
	}
	if kept[0].IdempotencyKey != "k1" || kept[1].IdempotencyKey != "k5" {
		t.Errorf("kept = %+v, want k1 and k5", kept)
	}
	if _, ok := got.Outbox["c2"]; ok {
		t.Error("channel with no valid entries kept in outbox map")
	}
}
