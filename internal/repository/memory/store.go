// Package memory is an in-process implementation of repository.Store. It
// mirrors the unique constraints of the Postgres schema and runs each
// transaction against a staged copy that is swapped in on commit, so readers
// only ever see committed state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
)

type dataset struct {
	patients    map[int64]model.DeceasedPatient
	units       map[int64]model.StorageUnit
	assignments map[int64]model.StorageAssignment
	postmortems map[int64]model.Postmortem
	releases    map[int64]model.BodyReleaseRequest
	tasks       map[int64]model.Task
	alerts      map[int64]model.SystemAlert
	users       map[int64]model.User
	outbox      map[uuid.UUID]model.OutboxEvent
	seq         map[string]int64
}

func newDataset() *dataset {
	return &dataset{
		patients:    map[int64]model.DeceasedPatient{},
		units:       map[int64]model.StorageUnit{},
		assignments: map[int64]model.StorageAssignment{},
		postmortems: map[int64]model.Postmortem{},
		releases:    map[int64]model.BodyReleaseRequest{},
		tasks:       map[int64]model.Task{},
		alerts:      map[int64]model.SystemAlert{},
		users:       map[int64]model.User{},
		outbox:      map[uuid.UUID]model.OutboxEvent{},
		seq:         map[string]int64{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *dataset) clone() *dataset {
	return &dataset{
		patients:    cloneMap(d.patients),
		units:       cloneMap(d.units),
		assignments: cloneMap(d.assignments),
		postmortems: cloneMap(d.postmortems),
		releases:    cloneMap(d.releases),
		tasks:       cloneMap(d.tasks),
		alerts:      cloneMap(d.alerts),
		users:       cloneMap(d.users),
		outbox:      cloneMap(d.outbox),
		seq:         cloneMap(d.seq),
	}
}

func (d *dataset) nextID(table string) int64 {
	d.seq[table]++
	return d.seq[table]
}

// Store guards a dataset. Transactions are serialized with txMu; mu only
// protects the pointer swap and direct reads and writes.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *dataset

	faultMu sync.Mutex
	faults  map[string]error
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		data:   newDataset(),
		faults: map[string]error{},
	}
}

// FailOn makes the next write named op (for example "assignments.create" or
// "storage_units.update_status") return err instead of applying.
func (s *Store) FailOn(op string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return err
}

func (s *Store) WithTx(ctx context.Context, fn func(q repository.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	after, err := s.commit(fn)
	if err != nil {
		return err
	}
	for _, f := range after {
		f()
	}
	return nil
}

func (s *Store) commit(fn func(q repository.Queries) error) ([]func(), error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	staged := s.data.clone()
	s.mu.RUnlock()

	var after []func()
	if err := fn(queries{s: s, tx: staged, after: &after}); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.data = staged
	s.mu.Unlock()
	return after, nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) root() queries { return queries{s: s} }

func (s *Store) Patients() repository.PatientRepository { return s.root().Patients() }

func (s *Store) StorageUnits() repository.StorageUnitRepository { return s.root().StorageUnits() }

func (s *Store) Assignments() repository.AssignmentRepository { return s.root().Assignments() }

func (s *Store) Postmortems() repository.PostmortemRepository { return s.root().Postmortems() }

func (s *Store) Releases() repository.ReleaseRepository { return s.root().Releases() }

func (s *Store) Tasks() repository.TaskRepository { return s.root().Tasks() }

func (s *Store) Alerts() repository.AlertRepository { return s.root().Alerts() }

func (s *Store) Users() repository.UserRepository { return s.root().Users() }

func (s *Store) Outbox() repository.OutboxRepository { return s.root().Outbox() }

func (s *Store) Dashboard() repository.DashboardRepository { return s.root().Dashboard() }

func (s *Store) Reports() repository.ReportRepository { return s.root().Reports() }

func (s *Store) AfterCommit(fn func()) { fn() }

// queries runs against the staged dataset when tx is set, otherwise against
// the committed one under the store locks.
type queries struct {
	s     *Store
	tx    *dataset
	after *[]func()
}

func (q queries) AfterCommit(fn func()) {
	if q.after == nil {
		fn()
		return
	}
	*q.after = append(*q.after, fn)
}

func (q queries) read(fn func(d *dataset) error) error {
	if q.tx != nil {
		return fn(q.tx)
	}
	q.s.mu.RLock()
	defer q.s.mu.RUnlock()
	return fn(q.s.data)
}

// write applies fn, which must validate before mutating so a failed direct
// write leaves nothing behind.
func (q queries) write(op string, fn func(d *dataset) error) error {
	if err := q.s.fault(op); err != nil {
		return err
	}
	if q.tx != nil {
		return fn(q.tx)
	}
	q.s.txMu.Lock()
	defer q.s.txMu.Unlock()
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	return fn(q.s.data)
}

func (q queries) Patients() repository.PatientRepository { return patientRepository{q} }

func (q queries) StorageUnits() repository.StorageUnitRepository { return storageUnitRepository{q} }

func (q queries) Assignments() repository.AssignmentRepository { return assignmentRepository{q} }

func (q queries) Postmortems() repository.PostmortemRepository { return postmortemRepository{q} }

func (q queries) Releases() repository.ReleaseRepository { return releaseRepository{q} }

func (q queries) Tasks() repository.TaskRepository { return taskRepository{q} }

func (q queries) Alerts() repository.AlertRepository { return alertRepository{q} }

func (q queries) Users() repository.UserRepository { return userRepository{q} }

func (q queries) Outbox() repository.OutboxRepository { return outboxRepository{q} }

func (q queries) Dashboard() repository.DashboardRepository { return dashboardRepository{q} }

func (q queries) Reports() repository.ReportRepository { return reportRepository{q} }

// collect copies the values of m that match keep and sorts them with less.
func collect[T any](m map[int64]T, keep func(*T) bool, less func(a, b *T) bool) []*T {
	out := make([]*T, 0, len(m))
	for _, v := range m {
		v := v
		if keep == nil || keep(&v) {
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func cloneList(l model.StringList) model.StringList {
	if l == nil {
		return model.StringList{}
	}
	return append(model.StringList{}, l...)
}

func now() time.Time {
	return time.Now().UTC()
}
