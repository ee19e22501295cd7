// internal/domain/errors.go
package domain

import "errors"

var (
	// ErrValidation is returned when a submission is missing required fields.
	ErrValidation = errors.New("validation failed")
	// ErrIdentityNotFound is returned when the acting identity does not exist.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrJobNotFound is returned when the job being applied to does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrDuplicateApplication is returned when the seeker already has an application for the job.
	ErrDuplicateApplication = errors.New("you have already applied for this job")
	// ErrNoResumeAvailable is returned when no file was uploaded and the identity has no stored résumé.
	ErrNoResumeAvailable = errors.New("please upload your resume")
	// ErrUploadFailed is returned when the blob store rejects a résumé upload.
	ErrUploadFailed = errors.New("failed to upload resume")
	// ErrNotAuthorized is returned when the acting identity is not allowed to perform the operation.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrApplicationNotFound is returned when an application does not exist or is hidden from the caller.
	ErrApplicationNotFound = errors.New("application not found")
	// ErrLedgerContention is returned when a read-modify-write kept losing to concurrent writers.
	ErrLedgerContention = errors.New("application ledger is busy, try again")
	// ErrBlobNotFound is returned by a BlobStore when the identifier no longer exists.
	ErrBlobNotFound = errors.New("blob not found")
)
