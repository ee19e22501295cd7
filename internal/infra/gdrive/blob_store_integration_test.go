package gdrive

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"job-board/internal/domain"
)

func TestUploadAndDeleteIntegration(t *testing.T) {
	credentials := os.Getenv("DRIVE_CREDENTIALS_FILE")
	folderID := os.Getenv("DRIVE_RESUME_FOLDER_ID")
	if credentials == "" || folderID == "" {
		t.Skip("DRIVE_CREDENTIALS_FILE and DRIVE_RESUME_FOLDER_ID must be set to run this test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := NewBlobStore(ctx, Config{
		CredentialsPath: credentials,
		Folders:         map[string]string{domain.ResumeFolder: folderID},
	})
	if err != nil {
		t.Fatalf("NewBlobStore: %v", err)
	}

	ref, err := store.Upload(ctx, strings.NewReader("%PDF-1.4 test"), domain.ResumeFolder, "integration.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if ref.Identifier == "" || ref.URL == "" {
		t.Fatalf("Upload returned an empty reference: %+v", ref)
	}

	if err := store.Delete(ctx, ref.Identifier); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, ref.Identifier); !errors.Is(err, domain.ErrBlobNotFound) {
		t.Fatalf("second Delete: expected ErrBlobNotFound, got %v", err)
	}
}

func TestUploadRejectsUnknownFolder(t *testing.T) {
	store := &BlobStore{folders: map[string]string{}}
	_, err := store.Upload(context.Background(), strings.NewReader("x"), "elsewhere", "a.pdf", "")
	if err == nil || !strings.Contains(err.Error(), "no drive folder") {
		t.Fatalf("expected unknown folder error, got %v", err)
	}
}
