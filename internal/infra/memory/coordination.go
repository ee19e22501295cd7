package memory

import (
	"context"
	"sort"
	"sync"

	"job-board/internal/domain"
)

// OrphanRepository is an in-process orphan blob queue.
type OrphanRepository struct {
	mu      sync.Mutex
	orphans map[string]domain.OrphanBlob
}

var _ domain.OrphanRepository = (*OrphanRepository)(nil)

func NewOrphanRepository() *OrphanRepository {
	return &OrphanRepository{orphans: make(map[string]domain.OrphanBlob)}
}

func (r *OrphanRepository) Add(ctx context.Context, orphan domain.OrphanBlob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orphans[orphan.Identifier] = orphan
	return nil
}

func (r *OrphanRepository) List(ctx context.Context, limit int) ([]domain.OrphanBlob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.OrphanBlob, 0, len(r.orphans))
	for _, o := range r.orphans {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OrphanRepository) Remove(ctx context.Context, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orphans, identifier)
	return nil
}

func (r *OrphanRepository) MarkFailed(ctx context.Context, identifier string, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orphans[identifier]
	if !ok {
		return nil
	}
	o.Attempts++
	if cause != nil {
		o.LastError = cause.Error()
	}
	r.orphans[identifier] = o
	return nil
}

// Locker hands out per-name locks within one process. An entry lives only
// while someone holds or waits for that name.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

var _ domain.Locker = (*Locker)(nil)

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*lockEntry)}
}

type lock struct {
	locker *Locker
	name   string
	entry  *lockEntry
	once   sync.Once
}

func (l *lock) Unlock(ctx context.Context) error {
	l.once.Do(func() {
		<-l.entry.ch
		l.locker.release(l.name, l.entry)
	})
	return nil
}

func (l *Locker) Lock(ctx context.Context, name string) (domain.Lock, error) {
	l.mu.Lock()
	entry, ok := l.locks[name]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		l.locks[name] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return &lock{locker: l, name: name, entry: entry}, nil
	case <-ctx.Done():
		l.release(name, entry)
		return nil, domain.ErrLockNotAcquired
	}
}

func (l *Locker) release(name string, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, name)
	}
}

// size returns the number of names currently held or waited on.
func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// SoleLeader is the election result for a single-node deployment: Campaign
// succeeds at once and leadership lasts until Resign.
type SoleLeader struct {
	mu     sync.Mutex
	lost   chan struct{}
	leader bool
}

var _ domain.LeaderElectionManager = (*SoleLeader)(nil)

func (s *SoleLeader) Campaign(ctx context.Context) (<-chan struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lost = make(chan struct{})
	s.leader = true
	return s.lost, nil
}

func (s *SoleLeader) Resign(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.leader {
		close(s.lost)
		s.leader = false
	}
	return nil
}

func (s *SoleLeader) IsLeader() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leader
}
