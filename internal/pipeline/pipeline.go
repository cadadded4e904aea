// Package pipeline drives a staged draft through upload and send. One call
// to SendDraft is one attempt: pop the draft, upload its attachments in
// order, issue the transport send, and reconcile the outbox. Failed attempts
// stay in the outbox for RetrySend or CancelSend.
//
// Concurrent sends for different channels are independent. Sends for the
// same channel are not serialized here: each call pops whatever draft exists
// at call time, so callers must gate user-triggered sends per channel.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pvieira94/courier/internal/attach"
	"github.com/pvieira94/courier/internal/bus"
	"github.com/pvieira94/courier/internal/ids"
	"github.com/pvieira94/courier/internal/store"
)

// SendPayload is the wire payload of one message-send call. AttachmentIDs is
// nil when the message carries no attachments; an empty list is never sent.
type SendPayload struct {
	Content       string
	Replies       []store.Reply
	AttachmentIDs []string
}

// UploadResult is the server's answer to an attachment upload.
type UploadResult struct {
	ID string
}

// Credentials authenticates attachment uploads.
type Credentials struct {
	UserID string
	Token  string
}

// Transport issues the final network calls. SendMessage must be idempotent
// server-side, keyed by idempotencyKey.
type Transport interface {
	SendMessage(ctx context.Context, channelID string, payload SendPayload, idempotencyKey string) (*store.Message, error)
	UploadAttachment(ctx context.Context, data []byte, creds Credentials, onProgress func(float64)) (UploadResult, error)
}

// Pipeline orchestrates draft → outbox → send.
type Pipeline struct {
	store          *store.Store
	cache          *attach.Cache
	transport      Transport
	creds          Credentials
	bus            *bus.Bus
	logger         *zap.Logger
	maxAttachments int
}

// New creates a pipeline. maxAttachments bounds attachments per message;
// drafts holding more roll the excess into the next draft on send.
func New(st *store.Store, cache *attach.Cache, transport Transport, creds Credentials, b *bus.Bus, logger *zap.Logger, maxAttachments int) *Pipeline {
	return &Pipeline{
		store:          st,
		cache:          cache,
		transport:      transport,
		creds:          creds,
		bus:            b,
		logger:         logger,
		maxAttachments: maxAttachments,
	}
}

// SendDraft pops the channel's live draft and sends it. A draft with neither
// content nor files aborts before the pop, so a replies-only draft survives.
func (p *Pipeline) SendDraft(ctx context.Context, channelID string) error {
	if d := p.store.Draft(channelID); d.Content == "" && len(d.Files) == 0 {
		return nil
	}
	return p.send(ctx, channelID, p.store.PopDraft(channelID, p.maxAttachments))
}

// SendDraftData sends an explicit payload, bypassing the draft pop.
func (p *Pipeline) SendDraftData(ctx context.Context, channelID string, draft store.DraftData) error {
	return p.send(ctx, channelID, draft)
}

// RetrySend re-attempts a failed entry: its snapshot is taken out of the
// outbox atomically and re-enters the pipeline as an explicit draft under a
// fresh idempotency key. Unknown keys are a no-op.
func (p *Pipeline) RetrySend(ctx context.Context, channelID, idempotencyKey string) error {
	msg, ok := p.store.TakeUnsent(channelID, idempotencyKey)
	if !ok {
		return nil
	}
	return p.send(ctx, channelID, store.DraftData{
		Content: msg.Content,
		Replies: msg.Replies,
		Files:   msg.Files,
	})
}

// CancelSend removes the outbox entry unconditionally. Attachments are not
// released; they stay with whatever draft still references them.
func (p *Pipeline) CancelSend(channelID, idempotencyKey string) {
	p.store.RemoveUnsent(channelID, idempotencyKey)
}

func (p *Pipeline) send(ctx context.Context, channelID string, draft store.DraftData) error {
	if draft.Content == "" && len(draft.Files) == 0 {
		return nil
	}

	key := ids.NewIdempotencyKey()
	p.store.AppendUnsent(channelID, store.UnsentMessage{
		IdempotencyKey: key,
		Status:         store.StatusSending,
		Content:        draft.Content,
		Replies:        draft.Replies,
		Files:          draft.Files,
	})

	attachmentIDs := make([]string, 0, len(draft.Files))
	for _, fileID := range draft.Files {
		entry := p.cache.File(fileID)
		if entry == nil {
			p.logger.Warn("draft references unknown attachment, skipping",
				zap.String("channel_id", channelID), zap.String("file_id", fileID))
			continue
		}

		// A memoized server id means a previous attempt already uploaded
		// this file; never re-upload.
		if sid := entry.ServerID(); sid != "" {
			attachmentIDs = append(attachmentIDs, sid)
			continue
		}

		result, err := p.upload(ctx, entry)
		if err != nil {
			p.store.MarkUnsentFailed(channelID, key)
			p.logger.Error("attachment upload failed",
				zap.String("channel_id", channelID),
				zap.String("idempotency_key", key),
				zap.String("file_id", fileID),
				zap.Error(err))
			uploadErr := &UploadError{AttachmentID: fileID, Err: err}
			p.publishResult(bus.KindSendFailed, channelID, key, uploadErr)
			return uploadErr
		}
		entry.SetServerID(result.ID)
		attachmentIDs = append(attachmentIDs, result.ID)
	}

	payload := SendPayload{Content: draft.Content, Replies: draft.Replies}
	if len(attachmentIDs) > 0 {
		payload.AttachmentIDs = attachmentIDs
	}

	if _, err := p.transport.SendMessage(ctx, channelID, payload, key); err != nil {
		// Keep the entry (and its uploaded attachments) for retry.
		p.store.MarkUnsentFailed(channelID, key)
		p.logger.Error("message send failed",
			zap.String("channel_id", channelID),
			zap.String("idempotency_key", key),
			zap.Error(err))
		sendErr := &SendError{Err: err}
		p.publishResult(bus.KindSendFailed, channelID, key, sendErr)
		return sendErr
	}

	for _, fileID := range draft.Files {
		p.cache.Release(fileID)
	}
	p.store.RemoveUnsent(channelID, key)
	p.logger.Info("message sent",
		zap.String("channel_id", channelID),
		zap.String("idempotency_key", key),
		zap.Int("attachments", len(attachmentIDs)))
	p.publishResult(bus.KindSendAck, channelID, key, nil)
	return nil
}

// upload streams one attachment, feeding fractional progress into the
// entry's cell. Progress lands on 1 when the request finishes, whatever the
// outcome.
func (p *Pipeline) upload(ctx context.Context, entry *attach.Entry) (UploadResult, error) {
	defer entry.Progress.Set(1)
	return p.transport.UploadAttachment(ctx, entry.Data, p.creds, entry.Progress.Set)
}

func (p *Pipeline) publishResult(kind, channelID, key string, err error) {
	if p.bus == nil {
		return
	}
	result := bus.SendResult{ChannelID: channelID, IdempotencyKey: key}
	if err != nil {
		result.Error = err.Error()
	}
	p.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: result})
}
