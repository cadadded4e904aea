package attach

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/pvieira94/courier/internal/store"
)

type stubPrefs struct{}

func (stubPrefs) SectionState(string) string { return "" }

func (stubPrefs) SetSectionState(string, string) error { return nil }

func testCache(t *testing.T) (*Cache, *store.Store) {
	t.Helper()
	st := store.New(stubPrefs{}, nil, 5)
	c := New(t.TempDir(), st, nil, zap.NewNop())
	st.SetFileReleaser(c)
	return c, st
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAddFileImage(t *testing.T) {
	c, st := testCache(t)

	entry, err := c.AddFile("c1", "pic.png", "image/png", pngBytes(t, 4, 3))
	if err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}

	if entry.ID == "" {
		t.Error("no id assigned")
	}
	if entry.Width != 4 || entry.Height != 3 {
		t.Errorf("dimensions = %dx%d, want 4x3", entry.Width, entry.Height)
	}
	if entry.PreviewPath == "" {
		t.Fatal("no preview for allow-listed image type")
	}
	if _, err := os.Stat(entry.PreviewPath); err != nil {
		t.Errorf("preview file missing: %v", err)
	}
	if got := entry.Progress.Value(); got != 0 {
		t.Errorf("initial progress = %v, want 0", got)
	}

	// The id lands in the channel draft's file list.
	d := st.Draft("c1")
	if len(d.Files) != 1 || d.Files[0] != entry.ID {
		t.Errorf("draft files = %v, want [%s]", d.Files, entry.ID)
	}
}

func TestAddFileNonImageHasNoPreview(t *testing.T) {
	c, _ := testCache(t)

	entry, err := c.AddFile("c1", "notes.txt", "text/plain", []byte("plain text"))
	if err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	if entry.PreviewPath != "" {
		t.Errorf("preview created for %q", entry.ContentType)
	}
	if entry.Width != 0 || entry.Height != 0 {
		t.Error("dimensions set for non-image")
	}
}

func TestAddFileUndecodableImageStillStaged(t *testing.T) {
	c, _ := testCache(t)

	// Claimed image type but garbage bytes: the decode failure is swallowed.
	entry, err := c.AddFile("c1", "broken.png", "image/png", []byte("not a png"))
	if err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	if entry.Width != 0 || entry.Height != 0 {
		t.Error("dimensions set despite decode failure")
	}
	if entry.PreviewPath == "" {
		t.Error("no preview reference for allow-listed type")
	}
	if c.File(entry.ID) == nil {
		t.Error("entry not staged")
	}
}

func TestReleaseRemovesEntryAndPreview(t *testing.T) {
	c, _ := testCache(t)
	entry, err := c.AddFile("c1", "pic.png", "image/png", pngBytes(t, 2, 2))
	if err != nil {
		t.Fatal(err)
	}

	c.Release(entry.ID)

	if c.File(entry.ID) != nil {
		t.Error("entry still present after release")
	}
	if _, err := os.Stat(entry.PreviewPath); !os.IsNotExist(err) {
		t.Error("preview file not removed")
	}

	// Releasing twice (or an unknown id) is fine.
	c.Release(entry.ID)
	c.Release("unknown")
}

func TestRemoveFileDetachesFromDraft(t *testing.T) {
	c, st := testCache(t)
	entry, err := c.AddFile("c1", "doc.pdf", "application/pdf", []byte("%PDF"))
	if err != nil {
		t.Fatal(err)
	}

	c.RemoveFile("c1", entry.ID)

	if c.File(entry.ID) != nil {
		t.Error("entry still cached")
	}
	if files := st.Draft("c1").Files; len(files) != 0 {
		t.Errorf("draft files = %v, want empty", files)
	}
}

func TestClearDraftReleasesThroughCache(t *testing.T) {
	c, st := testCache(t)
	entry, err := c.AddFile("c1", "pic.png", "image/png", pngBytes(t, 2, 2))
	if err != nil {
		t.Fatal(err)
	}

	st.ClearDraft("c1")

	if c.File(entry.ID) != nil {
		t.Error("cache entry survived ClearDraft")
	}
}

func TestServerIDMemoizedOnce(t *testing.T) {
	c, _ := testCache(t)
	entry, err := c.AddFile("c1", "doc.txt", "text/plain", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}

	entry.SetServerID("srv-1")
	entry.SetServerID("srv-2")

	if got := entry.ServerID(); got != "srv-1" {
		t.Errorf("ServerID = %q, want first write %q to stick", got, "srv-1")
	}
}

func TestCellPublishesOnChange(t *testing.T) {
	cell := NewCell()
	ch, unsub := cell.Subscribe(10)
	defer unsub()

	cell.Set(0.5)
	cell.Set(0.5) // no change, no publish
	cell.Set(1)

	if got := cell.Value(); got != 1 {
		t.Errorf("Value = %v, want 1", got)
	}

	var seen []float64
	for len(ch) > 0 {
		seen = append(seen, <-ch)
	}
	if len(seen) != 2 || seen[0] != 0.5 || seen[1] != 1 {
		t.Errorf("published = %v, want [0.5 1]", seen)
	}
}
