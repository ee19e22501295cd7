package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"job-board/internal/domain"
)

func seedApplication(t *testing.T, repo *ApplicationRepository, id, jobID, seekerID string) *domain.Application {
	t.Helper()
	seeker := &domain.Identity{ID: seekerID, Role: domain.RoleJobSeeker}
	job := &domain.Job{ID: jobID, Title: "Data Engineer", PostedBy: "employer-1"}
	app, err := domain.NewApplication(id, seeker, domain.SeekerDetails{Name: "Lin"}, job,
		domain.ResumeRef{Identifier: "r", URL: "https://blob/r"}, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	if err := repo.Create(context.Background(), app); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return app
}

func withdrawMutation(party domain.Party) domain.ApplicationMutation {
	return func(app *domain.Application) (domain.ApplicationChange, error) {
		outcome, err := app.Withdraw(party, time.Unix(1, 0))
		if err != nil {
			return domain.ChangeNone, err
		}
		switch outcome {
		case domain.WithdrawDestroyed:
			return domain.ChangeDestroy, nil
		case domain.WithdrawMarked:
			return domain.ChangeSave, nil
		}
		return domain.ChangeNone, nil
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	repo := NewApplicationRepository(0)
	seedApplication(t, repo, "app-1", "job-1", "seeker-1")

	seeker := &domain.Identity{ID: "seeker-1", Role: domain.RoleJobSeeker}
	job := &domain.Job{ID: "job-1", PostedBy: "employer-1"}
	dup, _ := domain.NewApplication("app-2", seeker, domain.SeekerDetails{}, job, domain.ResumeRef{URL: "u"}, time.Now())
	if err := repo.Create(context.Background(), dup); !errors.Is(err, domain.ErrDuplicateApplication) {
		t.Fatalf("expected ErrDuplicateApplication, got %v", err)
	}
	if repo.Len() != 1 {
		t.Fatalf("store has %d records, want 1", repo.Len())
	}
}

func TestReturnedApplicationsAreCopies(t *testing.T) {
	repo := NewApplicationRepository(0)
	seedApplication(t, repo, "app-1", "job-1", "seeker-1")

	got, err := repo.Get(context.Background(), "app-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.DeletedBy.JobSeeker = true

	again, _ := repo.Get(context.Background(), "app-1")
	if again.DeletedBy.JobSeeker {
		t.Fatal("mutating a returned application leaked into the store")
	}
}

func TestMutateRetriesAfterConcurrentWrite(t *testing.T) {
	repo := NewApplicationRepository(0)
	seedApplication(t, repo, "app-1", "job-1", "seeker-1")

	calls := 0
	_, change, err := repo.Mutate(context.Background(), "app-1", func(app *domain.Application) (domain.ApplicationChange, error) {
		calls++
		if calls == 1 {
			// Another writer lands between our read and our commit.
			if _, _, err := repo.Mutate(context.Background(), "app-1", withdrawMutation(domain.EmployerParty)); err != nil {
				t.Fatalf("inner Mutate: %v", err)
			}
		}
		return withdrawMutation(domain.SeekerParty)(app)
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("mutation ran %d times, want 2", calls)
	}
	if change != domain.ChangeDestroy {
		t.Fatalf("change = %v, want destroy after re-reading the employer's flag", change)
	}
	if _, err := repo.Get(context.Background(), "app-1"); !errors.Is(err, domain.ErrApplicationNotFound) {
		t.Fatalf("expected application to be destroyed, got %v", err)
	}
}

func TestConcurrentWithdrawalsDestroyExactlyOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		repo := NewApplicationRepository(0)
		seedApplication(t, repo, "app-1", "job-1", "seeker-1")

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			destroyed int
		)
		for _, party := range []domain.Party{domain.SeekerParty, domain.SeekerParty, domain.EmployerParty, domain.EmployerParty} {
			wg.Add(1)
			go func(p domain.Party) {
				defer wg.Done()
				_, change, err := repo.Mutate(context.Background(), "app-1", withdrawMutation(p))
				if err != nil && !errors.Is(err, domain.ErrApplicationNotFound) {
					t.Errorf("Mutate: %v", err)
				}
				if change == domain.ChangeDestroy {
					mu.Lock()
					destroyed++
					mu.Unlock()
				}
			}(party)
		}
		wg.Wait()

		if destroyed != 1 {
			t.Fatalf("iteration %d: destroyed %d times", i, destroyed)
		}
		if repo.Len() != 0 {
			t.Fatalf("iteration %d: %d records left", i, repo.Len())
		}
		if _, err := repo.FindByJobAndSeeker(context.Background(), "job-1", "seeker-1"); !errors.Is(err, domain.ErrApplicationNotFound) {
			t.Fatalf("iteration %d: uniqueness entry survived destruction", i)
		}
	}
}

func TestCountByState(t *testing.T) {
	repo := NewApplicationRepository(0)
	seedApplication(t, repo, "app-1", "job-1", "seeker-1")
	seedApplication(t, repo, "app-2", "job-2", "seeker-1")
	seedApplication(t, repo, "app-3", "job-3", "seeker-1")
	if _, _, err := repo.Mutate(context.Background(), "app-2", withdrawMutation(domain.EmployerParty)); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	counts, err := repo.CountByState(context.Background())
	if err != nil {
		t.Fatalf("CountByState: %v", err)
	}
	if counts[domain.StateActive] != 2 || counts[domain.StateWithdrawnByEmployer] != 1 || counts[domain.StateWithdrawnBySeeker] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestMutateGivesUpAfterMaxRetries(t *testing.T) {
	repo := NewApplicationRepository(3)
	seedApplication(t, repo, "app-1", "job-1", "seeker-1")

	touch := func(app *domain.Application) (domain.ApplicationChange, error) {
		app.UpdatedAt = app.UpdatedAt.Add(time.Second)
		return domain.ChangeSave, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	attempts := 0
	_, change, err := repo.Mutate(ctx, "app-1", func(app *domain.Application) (domain.ApplicationChange, error) {
		attempts++
		// A competing writer commits between every read and commit.
		if _, _, err := repo.Mutate(ctx, "app-1", touch); err != nil {
			t.Fatalf("competing Mutate: %v", err)
		}
		return touch(app)
	})
	if !errors.Is(err, domain.ErrLedgerContention) {
		t.Fatalf("expected ErrLedgerContention, got %v", err)
	}
	if change != domain.ChangeNone {
		t.Errorf("expected ChangeNone, got %v", change)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestNewApplicationRepositoryDefaultsRetries(t *testing.T) {
	if got := NewApplicationRepository(0).maxRetries; got != DefaultMaxRetries {
		t.Fatalf("maxRetries = %d, want %d", got, DefaultMaxRetries)
	}
}

func TestLockerSerializesSameName(t *testing.T) {
	locker := NewLocker()
	first, err := locker.Lock(context.Background(), "job-1/seeker-1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "job-1/seeker-1"); !errors.Is(err, domain.ErrLockNotAcquired) {
		t.Fatalf("expected ErrLockNotAcquired while held, got %v", err)
	}
	if _, err := locker.Lock(context.Background(), "job-2/seeker-1"); err != nil {
		t.Fatalf("different name should not block: %v", err)
	}

	_ = first.Unlock(context.Background())
	if _, err := locker.Lock(context.Background(), "job-1/seeker-1"); err != nil {
		t.Fatalf("Lock after unlock: %v", err)
	}
}

func TestLockerForgetsReleasedNames(t *testing.T) {
	locker := NewLocker()
	for i := 0; i < 50; i++ {
		l, err := locker.Lock(context.Background(), "submit/job-1/seeker-"+string(rune('a'+i%26)))
		if err != nil {
			t.Fatalf("Lock: %v", err)
		}
		_ = l.Unlock(context.Background())
	}
	if n := locker.size(); n != 0 {
		t.Fatalf("expected no retained lock entries, got %d", n)
	}

	held, err := locker.Lock(context.Background(), "job-1/seeker-1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "job-1/seeker-1"); !errors.Is(err, domain.ErrLockNotAcquired) {
		t.Fatalf("expected ErrLockNotAcquired, got %v", err)
	}
	if n := locker.size(); n != 1 {
		t.Fatalf("timed-out waiter should not leave extra entries, got %d", n)
	}
	_ = held.Unlock(context.Background())
	_ = held.Unlock(context.Background())
	if n := locker.size(); n != 0 {
		t.Fatalf("expected no entries after unlock, got %d", n)
	}
}
