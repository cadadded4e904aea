package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pvieira94/courier/internal/pipeline"
	"github.com/pvieira94/courier/internal/store"
)

func TestSendMessage(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":        "msg-42",
			"author_id": "u1",
			"content":   "hello",
		})
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL)
	msg, err := tr.SendMessage(context.Background(), "chan-1", pipeline.SendPayload{
		Content:       "hello",
		Replies:       []store.Reply{{MessageID: "m9", Mention: true}},
		AttachmentIDs: []string{"a1", "a2"},
	}, "key-abc")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	if gotPath != "/channels/chan-1/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "key-abc" {
		t.Errorf("Idempotency-Key = %q, want key-abc", gotKey)
	}
	if gotBody["content"] != "hello" {
		t.Errorf("body content = %v", gotBody["content"])
	}
	if ids, ok := gotBody["attachment_ids"].([]any); !ok || len(ids) != 2 {
		t.Errorf("body attachment_ids = %v", gotBody["attachment_ids"])
	}
	if msg.ID != "msg-42" || msg.AuthorID != "u1" {
		t.Errorf("message = %+v", msg)
	}
}

func TestSendMessageOmitsEmptyFields(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "m1"})
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL)
	if _, err := tr.SendMessage(context.Background(), "c1", pipeline.SendPayload{Content: "x"}, "k"); err != nil {
		t.Fatal(err)
	}

	if _, ok := raw["replies"]; ok {
		t.Error("empty replies serialized")
	}
	if _, ok := raw["attachment_ids"]; ok {
		t.Error("empty attachment_ids serialized")
	}
}

func TestSendMessageRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL)
	if _, err := tr.SendMessage(context.Background(), "c1", pipeline.SendPayload{Content: "x"}, "k"); err == nil {
		t.Fatal("no error for status 403")
	}
}

func TestUploadAttachment(t *testing.T) {
	payload := make([]byte, 1<<16)
	var gotAuth, gotUser string
	var gotLen int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUser = r.Header.Get("X-User-ID")
		body, _ := io.ReadAll(r.Body)
		gotLen = len(body)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "srv-7"})
	}))
	defer srv.Close()

	var mu sync.Mutex
	var progress []float64

	tr := NewHTTP(srv.URL)
	res, err := tr.UploadAttachment(context.Background(), payload, pipeline.Credentials{UserID: "u1", Token: "tok"}, func(f float64) {
		mu.Lock()
		progress = append(progress, f)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("UploadAttachment() error = %v", err)
	}

	if res.ID != "srv-7" {
		t.Errorf("id = %q, want srv-7", res.ID)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotUser != "u1" {
		t.Errorf("X-User-ID = %q", gotUser)
	}
	if gotLen != len(payload) {
		t.Errorf("server received %d bytes, want %d", gotLen, len(payload))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(progress) == 0 {
		t.Fatal("no progress reported")
	}
	if last := progress[len(progress)-1]; last != 1 {
		t.Errorf("final progress = %v, want 1", last)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress regressed: %v", progress)
		}
	}
}

func TestUploadAttachmentMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL)
	_, err := tr.UploadAttachment(context.Background(), []byte("x"), pipeline.Credentials{}, nil)
	if err == nil {
		t.Fatal("no error for response without id")
	}
}

func TestUploadAttachmentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too large", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL)
	if _, err := tr.UploadAttachment(context.Background(), []byte("x"), pipeline.Credentials{}, nil); err == nil {
		t.Fatal("no error for status 413")
	}
}
