package domain

import "context"

// Job is a posting owned by an employer identity.
type Job struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	PostedBy string `json:"posted_by"`
}

// JobRepository looks up job postings.
type JobRepository interface {
	// GetByID returns ErrJobNotFound when the job does not exist.
	GetByID(ctx context.Context, id string) (*Job, error)
}
