// internal/domain/identity.go
package domain

import "context"

// Role is the kind of party an identity acts as.
type Role string

const (
	RoleJobSeeker Role = "Job Seeker"
	RoleEmployer  Role = "Employer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleJobSeeker || r == RoleEmployer
}

// ResumeRef points at a résumé blob. Identifier is what the blob store deletes by.
type ResumeRef struct {
	Identifier string `json:"public_id"`
	URL        string `json:"url"`
}

// IsZero reports whether the reference points at nothing.
func (r ResumeRef) IsZero() bool {
	return r.URL == ""
}

// Identity is an authenticated party, owned by the user service.
type Identity struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Email   string     `json:"email"`
	Phone   string     `json:"phone"`
	Address string     `json:"address"`
	Role    Role       `json:"role"`
	Resume  *ResumeRef `json:"resume,omitempty"`
}

// StoredResume returns the identity's long-lived résumé, if any.
func (i *Identity) StoredResume() (ResumeRef, bool) {
	if i.Resume == nil || i.Resume.IsZero() {
		return ResumeRef{}, false
	}
	return *i.Resume, true
}

// IdentityRepository reads identities and updates their stored résumé.
type IdentityRepository interface {
	// GetByID returns ErrIdentityNotFound when no identity has the id.
	GetByID(ctx context.Context, id string) (*Identity, error)
	// UpdateResume replaces the stored résumé reference and returns the previous one, if any.
	UpdateResume(ctx context.Context, id string, ref ResumeRef) (*ResumeRef, error)
}
