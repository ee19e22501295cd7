package domain

import (
	"context"
	"io"
	"time"
)

// ResumeFolder is the logical folder every résumé blob is uploaded under.
const ResumeFolder = "Job_Seekers_Resume"

// ResumeUpload is a résumé file received with a request.
type ResumeUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// BlobStore uploads and deletes files in remote object storage.
type BlobStore interface {
	Upload(ctx context.Context, body io.Reader, folder, filename, contentType string) (ResumeRef, error)
	// Delete returns ErrBlobNotFound when the identifier is already gone.
	Delete(ctx context.Context, identifier string) error
}

// OrphanBlob is an uploaded blob that no record references and whose delete failed.
type OrphanBlob struct {
	Identifier string    `json:"identifier"`
	Reason     string    `json:"reason"`
	RecordedAt time.Time `json:"recorded_at"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
}

// OrphanRepository queues blobs that still have to be deleted.
type OrphanRepository interface {
	Add(ctx context.Context, orphan OrphanBlob) error
	List(ctx context.Context, limit int) ([]OrphanBlob, error)
	Remove(ctx context.Context, identifier string) error
	// MarkFailed records a failed delete attempt.
	MarkFailed(ctx context.Context, identifier string, cause error) error
}
