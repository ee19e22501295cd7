package etcd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"job-board/internal/domain"

	"github.com/google/uuid"
)

func newIntegrationRepo(t *testing.T) domain.ApplicationRepository {
	t.Helper()
	endpoints := os.Getenv("ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("ETCD_ENDPOINTS must be set to run this test")
	}

	client, err := NewClient(strings.Split(endpoints, ","), 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return NewEtcdApplicationRepository(client, DefaultMaxRetries, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newIntegrationApplication(t *testing.T) *domain.Application {
	t.Helper()
	seeker := &domain.Identity{ID: uuid.NewString(), Role: domain.RoleJobSeeker}
	job := &domain.Job{ID: uuid.NewString(), Title: "SRE", PostedBy: uuid.NewString()}
	app, err := domain.NewApplication(uuid.NewString(), seeker, domain.SeekerDetails{Name: "Grace"}, job,
		domain.ResumeRef{Identifier: "r", URL: "https://blob/r"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	return app
}

func withdrawAs(party domain.Party) domain.ApplicationMutation {
	return func(app *domain.Application) (domain.ApplicationChange, error) {
		outcome, err := app.Withdraw(party, time.Now().UTC())
		if err != nil {
			return domain.ChangeNone, err
		}
		switch outcome {
		case domain.WithdrawDestroyed:
			return domain.ChangeDestroy, nil
		case domain.WithdrawMarked:
			return domain.ChangeSave, nil
		default:
			return domain.ChangeNone, nil
		}
	}
}

func TestEtcdApplicationLifecycleIntegration(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	app := newIntegrationApplication(t)
	if err := repo.Create(ctx, app); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dup := *app
	dup.ID = uuid.NewString()
	if err := repo.Create(ctx, &dup); !errors.Is(err, domain.ErrDuplicateApplication) {
		t.Fatalf("expected ErrDuplicateApplication, got %v", err)
	}

	listed, err := repo.ListBySeeker(ctx, app.JobSeekerInfo.IdentityID)
	if err != nil || len(listed) != 1 {
		t.Fatalf("ListBySeeker = %d, %v", len(listed), err)
	}

	if _, change, err := repo.Mutate(ctx, app.ID, withdrawAs(domain.SeekerParty)); err != nil || change != domain.ChangeSave {
		t.Fatalf("seeker withdraw = %v, %v", change, err)
	}
	if _, change, err := repo.Mutate(ctx, app.ID, withdrawAs(domain.EmployerParty)); err != nil || change != domain.ChangeDestroy {
		t.Fatalf("employer withdraw = %v, %v", change, err)
	}

	if _, err := repo.Get(ctx, app.ID); !errors.Is(err, domain.ErrApplicationNotFound) {
		t.Fatalf("expected destroyed application to be gone, got %v", err)
	}
	if _, err := repo.FindByJobAndSeeker(ctx, app.JobInfo.JobID, app.JobSeekerInfo.IdentityID); !errors.Is(err, domain.ErrApplicationNotFound) {
		t.Fatalf("expected uniqueness index to be cleared, got %v", err)
	}
	listed, err = repo.ListByEmployer(ctx, app.EmployerInfo.IdentityID)
	if err != nil || len(listed) != 0 {
		t.Fatalf("ListByEmployer after destroy = %d, %v", len(listed), err)
	}
}

func TestEtcdConcurrentWithdrawalsDestroyOnceIntegration(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	app := newIntegrationApplication(t)
	if err := repo.Create(ctx, app); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		destroyed int
	)
	for _, party := range []domain.Party{domain.SeekerParty, domain.EmployerParty, domain.SeekerParty, domain.EmployerParty} {
		wg.Add(1)
		go func(p domain.Party) {
			defer wg.Done()
			_, change, err := repo.Mutate(ctx, app.ID, withdrawAs(p))
			if err != nil && !errors.Is(err, domain.ErrApplicationNotFound) {
				t.Errorf("Mutate(%s): %v", p, err)
				return
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
		t.Fatalf("destroyed %d times, want exactly once", destroyed)
	}
	if _, err := repo.Get(ctx, app.ID); !errors.Is(err, domain.ErrApplicationNotFound) {
		t.Fatalf("expected application to be gone, got %v", err)
	}
}
