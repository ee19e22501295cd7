// Package gdrive stores résumé files in Google Drive folders.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"job-board/internal/domain"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Config is handed to the blob store at construction; nothing is read from globals.
type Config struct {
	CredentialsPath string
	CredentialsJSON []byte
	// Folders maps a logical folder name (domain.ResumeFolder) to a Drive folder id.
	Folders map[string]string
}

// BlobStore implements domain.BlobStore on the Drive v3 API.
type BlobStore struct {
	service *drive.Service
	folders map[string]string
}

var _ domain.BlobStore = (*BlobStore)(nil)

func NewBlobStore(ctx context.Context, cfg Config) (*BlobStore, error) {
	var opts []option.ClientOption

	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	} else if len(cfg.CredentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	} else {
		return nil, fmt.Errorf("gdrive: credentials path or JSON is required")
	}
	opts = append(opts, option.WithScopes(drive.DriveFileScope))

	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gdrive: failed to create service: %w", err)
	}

	folders := make(map[string]string, len(cfg.Folders))
	for name, id := range cfg.Folders {
		folders[name] = id
	}
	return &BlobStore{service: service, folders: folders}, nil
}

// Upload streams body into the Drive folder mapped to folder. The returned
// identifier is the Drive file id.
func (s *BlobStore) Upload(ctx context.Context, body io.Reader, folder, filename, contentType string) (domain.ResumeRef, error) {
	folderID, ok := s.folders[folder]
	if !ok {
		return domain.ResumeRef{}, fmt.Errorf("gdrive: no drive folder configured for %q", folder)
	}

	meta := &drive.File{
		Name:    filename,
		Parents: []string{folderID},
	}
	var mediaOpts []googleapi.MediaOption
	if contentType != "" {
		meta.MimeType = contentType
		mediaOpts = append(mediaOpts, googleapi.ContentType(contentType))
	}

	file, err := s.service.Files.Create(meta).
		Media(body, mediaOpts...).
		Fields("id", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return domain.ResumeRef{}, fmt.Errorf("gdrive: upload %s: %w", filename, err)
	}

	url := file.WebViewLink
	if url == "" {
		url = "https://drive.google.com/file/d/" + file.Id + "/view"
	}
	return domain.ResumeRef{Identifier: file.Id, URL: url}, nil
}

func (s *BlobStore) Delete(ctx context.Context, identifier string) error {
	err := s.service.Files.Delete(identifier).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return domain.ErrBlobNotFound
	}
	return fmt.Errorf("gdrive: delete %s: %w", identifier, err)
}
