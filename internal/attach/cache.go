// Package attach is the in-memory cache of files staged for upload. Drafts
// reference entries by id; the cache owns the raw bytes, the preview file on
// disk, and the per-entry upload progress cell. Every entry is released
// explicitly when its draft or message stops needing it.
package attach

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pvieira94/courier/internal/bus"
	"github.com/pvieira94/courier/internal/ids"
	"github.com/pvieira94/courier/internal/store"
)

// Entry is one staged file.
type Entry struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte

	// PreviewPath is the revocable preview file, set only for allow-listed
	// image types. Removed on release.
	PreviewPath string
	// Width and Height are best-effort decoded pixel dimensions; zero when
	// the decode failed or the file is not an image.
	Width  int
	Height int

	// Progress is the upload progress in [0,1], written by the send
	// pipeline and forced to 1 when an upload request finishes regardless
	// of outcome.
	Progress *Cell

	mu       sync.Mutex
	serverID string
}

// ServerID returns the memoized server-assigned id, or "" before the first
// successful upload.
func (e *Entry) ServerID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.serverID
}

// SetServerID memoizes the server-assigned id. Set exactly once; later calls
// are ignored so a retried send can never reassign it.
func (e *Entry) SetServerID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.serverID == "" {
		e.serverID = id
	}
}

// Cache is the ownership table id → entry.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	previewDir string
	store      *store.Store
	bus        *bus.Bus
	logger     *zap.Logger
}

// New creates an empty cache writing previews under previewDir.
func New(previewDir string, st *store.Store, b *bus.Bus, logger *zap.Logger) *Cache {
	return &Cache{
		entries:    make(map[string]*Entry),
		previewDir: previewDir,
		store:      st,
		bus:        b,
		logger:     logger,
	}
}

// AddFile stages a file for the channel's draft: generates a local id,
// stores the entry, and appends the id to the draft's file list. For
// allow-listed image types a preview file is written and pixel dimensions
// are decoded before the call returns; a failed dimension decode is ignored.
func (c *Cache) AddFile(channelID, name, contentType string, data []byte) (*Entry, error) {
	entry := &Entry{
		ID:          ids.NewLocalID(),
		Name:        name,
		ContentType: contentType,
		Data:        data,
		Progress:    NewCell(),
	}

	if Previewable(contentType) {
		path, err := writePreview(c.previewDir, entry.ID, data)
		if err != nil {
			return nil, err
		}
		entry.PreviewPath = path

		if w, h, err := decodeDimensions(data); err == nil {
			entry.Width, entry.Height = w, h
		} else {
			c.logger.Debug("dimension decode failed",
				zap.String("file_id", entry.ID), zap.Error(err))
		}
	}

	c.mu.Lock()
	c.entries[entry.ID] = entry
	c.mu.Unlock()

	c.store.AttachFile(channelID, entry.ID)
	c.publish(bus.KindAttachmentAdded, channelID, entry.ID)
	return entry, nil
}

// File returns the entry for id, or nil if it does not exist.
func (c *Cache) File(id string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[id]
}

// RemoveFile releases the entry and removes its id from the channel's draft.
func (c *Cache) RemoveFile(channelID, id string) {
	c.Release(id)
	c.store.DetachFile(channelID, id)
}

// Release revokes the preview file and deletes the entry. Safe to call for
// unknown ids. Implements store.FileReleaser.
func (c *Cache) Release(id string) {
	c.mu.Lock()
	entry, ok := c.entries[id]
	if ok {
		delete(c.entries, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	if entry.PreviewPath != "" {
		if err := removePreview(entry.PreviewPath); err != nil {
			c.logger.Warn("failed to remove preview",
				zap.String("file_id", id), zap.Error(err))
		}
	}
	c.publish(bus.KindAttachmentRemoved, "", id)
}

// Len returns the number of staged entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) publish(kind, channelID, fileID string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   bus.AttachmentChange{ChannelID: channelID, FileID: fileID},
	})
}
