package domain

import "context"

// ApplicationChange tells the repository what to persist after a mutation.
type ApplicationChange int

const (
	ChangeNone ApplicationChange = iota
	ChangeSave
	ChangeDestroy
)

// ApplicationMutation inspects and edits a freshly read application. It may be
// called more than once when the write loses a race, so it must not have side
// effects beyond the record itself and variables it overwrites on every call.
type ApplicationMutation func(app *Application) (ApplicationChange, error)

// ApplicationRepository is the durable store behind the application ledger.
type ApplicationRepository interface {
	// Create persists a new application. It returns ErrDuplicateApplication when
	// an application for the same job and seeker already exists.
	Create(ctx context.Context, app *Application) error
	// Get returns ErrApplicationNotFound when the id is unknown.
	Get(ctx context.Context, id string) (*Application, error)
	// FindByJobAndSeeker returns ErrApplicationNotFound when the seeker has not applied.
	FindByJobAndSeeker(ctx context.Context, jobID, seekerID string) (*Application, error)
	// ListByEmployer returns every stored application owned by the employer, withdrawn or not.
	ListByEmployer(ctx context.Context, employerID string) ([]*Application, error)
	// ListBySeeker returns every stored application filed by the seeker, withdrawn or not.
	ListBySeeker(ctx context.Context, seekerID string) ([]*Application, error)
	// Mutate runs an atomic read-modify-write on one application, retrying on
	// write conflicts. It returns ErrLedgerContention once retries are exhausted.
	Mutate(ctx context.Context, id string, fn ApplicationMutation) (*Application, ApplicationChange, error)
	// CountByState counts stored applications per withdrawal state.
	CountByState(ctx context.Context) (map[State]int, error)
}
