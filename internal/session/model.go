// Package session owns the procedure lifecycle: the upload queue,
// sequential classification over the realtime connection, conversation
// sync, dictation capture, and close/note generation.
package session

import (
	"github.com/scopenote/scopenote/internal/shared"
)

type Status string

const (
	StatusQueued      Status = "queued"
	StatusClassifying Status = "classifying"
	StatusClassified  Status = "classified"
	StatusError       Status = "error"
)

// Session is the backend-tracked unit of one procedure. It is replaced
// only by starting a new session, never reopened after close.
type Session struct {
	ID           string
	Closed       bool
	AutoGenerate bool
}

// Documentation is free-text context attached to an upload item and
// merged into that item's classification request.
type Documentation struct {
	Text     string
	FileName string
	Source   string
}

// Dictation is an audio annotation attached to an upload item. Handle
// points into the blob store and is owned by the controller.
type Dictation struct {
	Handle   string
	FileName string
	MimeType string
	Source   string
}

// UploadItem is one enqueued image. At most one classification is in
// flight per item; classified items stay in the collection because the
// diagram keeps rendering them.
type UploadItem struct {
	LocalID  string
	Filename string
	Data     []byte

	Status           Status
	Label            string
	Reasoning        string
	ImageDescription string
	RemoteID         int64
	Usage            *shared.Usage
	Err              string

	OriginalHandle  string
	ThumbnailHandle string

	Documentation *Documentation
	Dictation     *Dictation
}

func newUploadItem(filename string, data []byte, originalHandle string) *UploadItem {
	return &UploadItem{
		LocalID:        shared.NewID("img"),
		Filename:       filename,
		Data:           data,
		Status:         StatusQueued,
		OriginalHandle: originalHandle,
	}
}
