package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"job-board/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBlobStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	seq       int
	uploads   int
	deletes   []string
	uploadErr error
	deleteErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) Upload(ctx context.Context, body io.Reader, folder, filename, contentType string) (domain.ResumeRef, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return domain.ResumeRef{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return domain.ResumeRef{}, f.uploadErr
	}
	f.seq++
	id := fmt.Sprintf("%s/blob-%d", folder, f.seq)
	f.blobs[id] = data
	return domain.ResumeRef{Identifier: id, URL: "https://blobs.test/" + id}, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, identifier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, identifier)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.blobs[identifier]; !ok {
		return domain.ErrBlobNotFound
	}
	delete(f.blobs, identifier)
	return nil
}

func (f *fakeBlobStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blobs)
}

func (f *fakeBlobStore) has(identifier string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[identifier]
	return ok
}

func (f *fakeBlobStore) setDeleteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

type fakeIdentities struct {
	mu        sync.Mutex
	byID      map[string]*domain.Identity
	gets      int
	updates   int
	updateErr error
}

func newFakeIdentities(identities ...*domain.Identity) *fakeIdentities {
	f := &fakeIdentities{byID: make(map[string]*domain.Identity)}
	for _, i := range identities {
		f.byID[i.ID] = i
	}
	return f
}

func (f *fakeIdentities) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	i, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	cp := *i
	if i.Resume != nil {
		r := *i.Resume
		cp.Resume = &r
	}
	return &cp, nil
}

func (f *fakeIdentities) UpdateResume(ctx context.Context, id string, ref domain.ResumeRef) (*domain.ResumeRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	i, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	previous := i.Resume
	i.Resume = &ref
	return previous, nil
}

func (f *fakeIdentities) stored(id string) *domain.ResumeRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Resume
}

type fakeJobs struct {
	mu   sync.Mutex
	byID map[string]*domain.Job
}

func newFakeJobs(jobs ...*domain.Job) *fakeJobs {
	f := &fakeJobs{byID: make(map[string]*domain.Job)}
	for _, j := range jobs {
		f.byID[j.ID] = j
	}
	return f
}

func (f *fakeJobs) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// failingCreate wraps a repository and fails every Create.
type failingCreate struct {
	domain.ApplicationRepository
	err error
}

func (f failingCreate) Create(ctx context.Context, app *domain.Application) error {
	return f.err
}

var errStorage = errors.New("storage unavailable")

// contendedMutate commits a competing write between every read and commit,
// so the wrapped repository always loses the compare-and-swap.
type contendedMutate struct {
	domain.ApplicationRepository
}

func (c contendedMutate) Mutate(ctx context.Context, id string, fn domain.ApplicationMutation) (*domain.Application, domain.ApplicationChange, error) {
	return c.ApplicationRepository.Mutate(ctx, id, func(app *domain.Application) (domain.ApplicationChange, error) {
		_, _, err := c.ApplicationRepository.Mutate(ctx, id, func(other *domain.Application) (domain.ApplicationChange, error) {
			other.UpdatedAt = other.UpdatedAt.Add(time.Nanosecond)
			return domain.ChangeSave, nil
		})
		if err != nil {
			return domain.ChangeNone, err
		}
		return fn(app)
	})
}

type fakeScheduler struct {
	mu      sync.Mutex
	tasks   []domain.Task
	started chan struct{}
	stopped chan struct{}
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{started: make(chan struct{}), stopped: make(chan struct{})}
}

func (f *fakeScheduler) Start(ctx context.Context) error {
	close(f.started)
	<-ctx.Done()
	close(f.stopped)
	return ctx.Err()
}

func (f *fakeScheduler) AddTask(task domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeScheduler) RemoveTask(name string) error {
	return nil
}
