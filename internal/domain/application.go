// internal/domain/application.go
package domain

import (
	"fmt"
	"time"
)

// SeekerDetails are the contact fields a seeker fills in on the application form.
type SeekerDetails struct {
	Name        string `json:"name" validate:"required,max=128"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required,max=32"`
	Address     string `json:"address" validate:"required,max=256"`
	CoverLetter string `json:"cover_letter" validate:"required,max=10000"`
}

// SeekerSnapshot is the seeker side of an application, frozen at submission time.
type SeekerSnapshot struct {
	IdentityID  string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	CoverLetter string    `json:"cover_letter"`
	Resume      ResumeRef `json:"resume"`
}

// EmployerSnapshot is the employer side of an application: the job's owner at submission time.
type EmployerSnapshot struct {
	IdentityID string `json:"id"`
}

// JobSnapshot records which job was applied to and its title at submission time.
type JobSnapshot struct {
	JobID    string `json:"job_id"`
	JobTitle string `json:"job_title"`
}

// DeletedBy tracks which parties have withdrawn from an application.
type DeletedBy struct {
	JobSeeker bool `json:"job_seeker"`
	Employer  bool `json:"employer"`
}

// State is the withdrawal state derived from DeletedBy.
type State string

const (
	StateActive              State = "active"
	StateWithdrawnBySeeker   State = "withdrawn_by_seeker"
	StateWithdrawnByEmployer State = "withdrawn_by_employer"
	StateDestroyed           State = "destroyed"
)

// State maps the flag pair onto the withdrawal state machine.
func (d DeletedBy) State() State {
	switch {
	case d.JobSeeker && d.Employer:
		return StateDestroyed
	case d.JobSeeker:
		return StateWithdrawnBySeeker
	case d.Employer:
		return StateWithdrawnByEmployer
	default:
		return StateActive
	}
}

// Party is the caller's relationship to a specific application.
type Party int

const (
	NotAParty Party = iota
	SeekerParty
	EmployerParty
)

func (p Party) String() string {
	switch p {
	case SeekerParty:
		return "job_seeker"
	case EmployerParty:
		return "employer"
	default:
		return "none"
	}
}

// WithdrawOutcome describes what a withdrawal did to the record.
type WithdrawOutcome string

const (
	// WithdrawNoop means the party had already withdrawn.
	WithdrawNoop WithdrawOutcome = "noop"
	// WithdrawMarked means the party's flag was set and the other party has not withdrawn yet.
	WithdrawMarked WithdrawOutcome = "marked"
	// WithdrawDestroyed means both parties have now withdrawn and the record must be removed.
	WithdrawDestroyed WithdrawOutcome = "destroyed"
)

// Application links a seeker, a job and the job's owner.
type Application struct {
	ID            string           `json:"id"`
	JobSeekerInfo SeekerSnapshot   `json:"job_seeker_info"`
	EmployerInfo  EmployerSnapshot `json:"employer_info"`
	JobInfo       JobSnapshot      `json:"job_info"`
	DeletedBy     DeletedBy        `json:"deleted_by"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewApplication snapshots the seeker, the job and its owner into a fresh, active application.
func NewApplication(id string, seeker *Identity, details SeekerDetails, job *Job, resume ResumeRef, now time.Time) (*Application, error) {
	if resume.IsZero() {
		return nil, ErrNoResumeAvailable
	}
	if seeker == nil || job == nil {
		return nil, fmt.Errorf("application %s: seeker and job are required", id)
	}
	return &Application{
		ID: id,
		JobSeekerInfo: SeekerSnapshot{
			IdentityID:  seeker.ID,
			Name:        details.Name,
			Email:       details.Email,
			Phone:       details.Phone,
			Address:     details.Address,
			CoverLetter: details.CoverLetter,
			Resume:      resume,
		},
		EmployerInfo: EmployerSnapshot{IdentityID: job.PostedBy},
		JobInfo:      JobSnapshot{JobID: job.ID, JobTitle: job.Title},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// State returns the application's current withdrawal state.
func (a *Application) State() State {
	return a.DeletedBy.State()
}

// PartyOf resolves which side of the application the identity is on. The role
// must agree with the stored id: a seeker id presented with the employer role is
// not a party.
func (a *Application) PartyOf(identityID string, role Role) Party {
	if identityID == "" {
		return NotAParty
	}
	switch role {
	case RoleJobSeeker:
		if a.JobSeekerInfo.IdentityID == identityID {
			return SeekerParty
		}
	case RoleEmployer:
		if a.EmployerInfo.IdentityID == identityID {
			return EmployerParty
		}
	}
	return NotAParty
}

// VisibleTo reports whether the party may still see the application.
func (a *Application) VisibleTo(p Party) bool {
	switch p {
	case SeekerParty:
		return !a.DeletedBy.JobSeeker
	case EmployerParty:
		return !a.DeletedBy.Employer
	default:
		return false
	}
}

// Withdraw sets the party's flag. It returns WithdrawDestroyed when this call set
// the second flag; the caller must remove the record in the same write.
func (a *Application) Withdraw(p Party, now time.Time) (WithdrawOutcome, error) {
	switch p {
	case SeekerParty:
		if a.DeletedBy.JobSeeker {
			return WithdrawNoop, nil
		}
		a.DeletedBy.JobSeeker = true
	case EmployerParty:
		if a.DeletedBy.Employer {
			return WithdrawNoop, nil
		}
		a.DeletedBy.Employer = true
	default:
		return WithdrawNoop, ErrNotAuthorized
	}

	a.UpdatedAt = now
	if a.State() == StateDestroyed {
		return WithdrawDestroyed, nil
	}
	return WithdrawMarked, nil
}
