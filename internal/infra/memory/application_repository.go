// Package memory holds single-process implementations of the storage ports,
// used for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"job-board/internal/domain"
	"job-board/internal/metrics"
)

// DefaultMaxRetries bounds the read-modify-write loop in Mutate.
const DefaultMaxRetries = 5

type jobSeeker struct {
	jobID    string
	seekerID string
}

type storedApplication struct {
	app      domain.Application
	revision int64
}

// ApplicationRepository keeps applications in a map. Each record carries a
// revision so Mutate has the same compare-and-swap semantics as the etcd store.
type ApplicationRepository struct {
	mu         sync.RWMutex
	records    map[string]*storedApplication
	unique     map[jobSeeker]string
	revision   int64
	maxRetries int
}

var _ domain.ApplicationRepository = (*ApplicationRepository)(nil)

// NewApplicationRepository creates an empty ledger. A maxRetries of zero or
// less uses DefaultMaxRetries.
func NewApplicationRepository(maxRetries int) *ApplicationRepository {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &ApplicationRepository{
		records:    make(map[string]*storedApplication),
		unique:     make(map[jobSeeker]string),
		maxRetries: maxRetries,
	}
}

func (r *ApplicationRepository) Create(ctx context.Context, app *domain.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := jobSeeker{jobID: app.JobInfo.JobID, seekerID: app.JobSeekerInfo.IdentityID}
	if _, ok := r.unique[key]; ok {
		return domain.ErrDuplicateApplication
	}
	if _, ok := r.records[app.ID]; ok {
		return domain.ErrDuplicateApplication
	}

	r.revision++
	r.records[app.ID] = &storedApplication{app: *app, revision: r.revision}
	r.unique[key] = app.ID
	return nil
}

func (r *ApplicationRepository) Get(ctx context.Context, id string) (*domain.Application, error) {
	app, _, err := r.read(id)
	return app, err
}

func (r *ApplicationRepository) FindByJobAndSeeker(ctx context.Context, jobID, seekerID string) (*domain.Application, error) {
	r.mu.RLock()
	id, ok := r.unique[jobSeeker{jobID: jobID, seekerID: seekerID}]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrApplicationNotFound
	}
	return r.Get(ctx, id)
}

func (r *ApplicationRepository) ListByEmployer(ctx context.Context, employerID string) ([]*domain.Application, error) {
	return r.filter(func(app *domain.Application) bool {
		return app.EmployerInfo.IdentityID == employerID
	}), nil
}

func (r *ApplicationRepository) ListBySeeker(ctx context.Context, seekerID string) ([]*domain.Application, error) {
	return r.filter(func(app *domain.Application) bool {
		return app.JobSeekerInfo.IdentityID == seekerID
	}), nil
}

// Mutate applies fn to a copy and commits it only if no other write landed in
// between. fn runs without the lock held, like a remote read-modify-write.
// After maxRetries lost commits it gives up with ErrLedgerContention.
func (r *ApplicationRepository) Mutate(ctx context.Context, id string, fn domain.ApplicationMutation) (*domain.Application, domain.ApplicationChange, error) {
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, domain.ChangeNone, err
		}

		app, revision, err := r.read(id)
		if err != nil {
			return nil, domain.ChangeNone, err
		}

		change, err := fn(app)
		if err != nil {
			return app, domain.ChangeNone, err
		}
		if change == domain.ChangeNone {
			return app, domain.ChangeNone, nil
		}

		committed, err := r.commit(id, revision, app, change)
		if err != nil {
			return nil, domain.ChangeNone, err
		}
		if committed {
			return app, change, nil
		}
		metrics.LedgerWriteConflictsTotal.Inc()
	}
	return nil, domain.ChangeNone, domain.ErrLedgerContention
}

func (r *ApplicationRepository) CountByState(ctx context.Context) (map[domain.State]int, error) {
	counts := map[domain.State]int{
		domain.StateActive:              0,
		domain.StateWithdrawnBySeeker:   0,
		domain.StateWithdrawnByEmployer: 0,
	}
	for _, app := range r.filter(func(*domain.Application) bool { return true }) {
		counts[app.State()]++
	}
	return counts, nil
}

// Len returns the number of stored applications.
func (r *ApplicationRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *ApplicationRepository) commit(id string, revision int64, app *domain.Application, change domain.ApplicationChange) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[id]
	if !ok || current.revision != revision {
		return false, nil
	}

	switch change {
	case domain.ChangeSave:
		r.revision++
		r.records[id] = &storedApplication{app: *app, revision: r.revision}
	case domain.ChangeDestroy:
		delete(r.records, id)
		delete(r.unique, jobSeeker{jobID: app.JobInfo.JobID, seekerID: app.JobSeekerInfo.IdentityID})
	default:
		return false, fmt.Errorf("unknown application change %d", change)
	}
	return true, nil
}

func (r *ApplicationRepository) read(id string) (*domain.Application, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.records[id]
	if !ok {
		return nil, 0, domain.ErrApplicationNotFound
	}
	app := stored.app
	return &app, stored.revision, nil
}

func (r *ApplicationRepository) filter(keep func(*domain.Application) bool) []*domain.Application {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Application, 0)
	for _, stored := range r.records {
		app := stored.app
		if keep(&app) {
			out = append(out, &app)
		}
	}
	return out
}
