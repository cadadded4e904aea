package pipeline

import "fmt"

// UploadError reports that a specific attachment failed to upload. The send
// attempt stops at the first failing attachment; later ones are not tried.
type UploadError struct {
	AttachmentID string
	Err          error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload attachment %s: %v", e.AttachmentID, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// SendError reports that the transport rejected the message-send call after
// all uploads succeeded.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
