// internal/api/http/dto.go
package http

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"job-board/internal/domain"
)

const (
	maxResumeBytes  = 5 << 20
	maxRequestBytes = maxResumeBytes + 1<<20
	maxFormMemory   = 8 << 20
)

var allowedResumeTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

var errFormTooLarge = errors.New("request body too large")

// SubmitApplicationForm is the multipart body of a submission.
type SubmitApplicationForm struct {
	Name        string
	Email       string
	Phone       string
	Address     string
	CoverLetter string
}

// ToDetails maps the form to the domain's SeekerDetails.
func (f SubmitApplicationForm) ToDetails() domain.SeekerDetails {
	return domain.SeekerDetails{
		Name:        f.Name,
		Email:       f.Email,
		Phone:       f.Phone,
		Address:     f.Address,
		CoverLetter: f.CoverLetter,
	}
}

// parseMultipart bounds the request body and parses the form. The caller must
// call r.MultipartForm.RemoveAll when it is non-nil.
func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errFormTooLarge
		}
		return fmt.Errorf("%w: expected a multipart form: %v", domain.ErrValidation, err)
	}
	return nil
}

func bindSubmitForm(r *http.Request) SubmitApplicationForm {
	field := func(names ...string) string {
		for _, name := range names {
			if v := strings.TrimSpace(r.FormValue(name)); v != "" {
				return v
			}
		}
		return ""
	}
	return SubmitApplicationForm{
		Name:    field("name"),
		Email:   field("email"),
		Phone:   field("phone"),
		Address: field("address"),
		// CV is the field name older clients send.
		CoverLetter: field("cover_letter", "CV"),
	}
}

// resumeFromForm returns the uploaded résumé, or nil when the form carries none.
// The returned body is only valid until the form is removed.
func resumeFromForm(r *http.Request) (*domain.ResumeUpload, error) {
	file, header, err := r.FormFile("resume")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable resume file: %v", domain.ErrValidation, err)
	}
	upload, err := toUpload(file, header)
	if err != nil {
		file.Close()
		return nil, err
	}
	return upload, nil
}

func toUpload(file multipart.File, header *multipart.FileHeader) (*domain.ResumeUpload, error) {
	if header.Size == 0 {
		return nil, fmt.Errorf("%w: resume file is empty", domain.ErrValidation)
	}
	if header.Size > maxResumeBytes {
		return nil, fmt.Errorf("%w: resume file exceeds %d MB", domain.ErrValidation, maxResumeBytes>>20)
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, ok := allowedResumeTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: resume must be one of PDF, DOC, DOCX, PNG, JPEG or WEBP", domain.ErrValidation)
	}
	if declared := header.Header.Get("Content-Type"); declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			contentType = mt
		}
	}
	return &domain.ResumeUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}, nil
}
