package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/gradebook"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultSavedTTL = 2 * time.Second
)

var errStoreClosed = errors.New("draft store is closed")

type (
	// Store is a debounced write-through cache of drafts.
	// Every Set restarts the debounce timer of its scope; once it fires the
	// scope is persisted and shown as saved for a while before going idle.
	Store struct {
		backend  Backend
		logger   core.Logger
		debounce time.Duration
		savedTTL time.Duration

		mu      sync.Mutex
		scopes  map[string]*scopeState
		closed  bool
		pending sync.WaitGroup // scheduled saves
		io      sync.Mutex     // serializes backend writes
	}

	scopeState struct {
		scope       Scope
		grades      map[string]float64
		status      Status
		lastSaved   time.Time
		version     int // bumped on every edit
		saveTimer   *time.Timer
		statusTimer *time.Timer
	}
)

func NewStore(backend Backend, logger core.Logger, conf *core.Config) *Store {
	s := &Store{
		backend:  backend,
		logger:   logger,
		debounce: conf.Drafts.Debounce,
		savedTTL: conf.Drafts.SavedTTL,
		scopes:   make(map[string]*scopeState),
	}
	if s.debounce <= 0 {
		s.debounce = DefaultDebounce
	}
	if s.savedTTL <= 0 {
		s.savedTTL = DefaultSavedTTL
	}
	return s
}

// Set records marks for an enrollment and schedules a save of the scope.
func (s *Store) Set(scope Scope, enrollmentID string, marks float64) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	enrollmentID = core.CleanString(enrollmentID)
	if enrollmentID == "" {
		return core.NewValidationError(errors.New("invalid draft"),
			core.FieldError{Field: "enrollment_id", Error: "this field is required"})
	}
	if !gradebook.ValidMarks(marks) {
		return core.NewValidationError(errors.New("invalid draft"),
			core.FieldError{Field: "marks", Error: "marks must be a number between 0 and 100"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}

	st := s.state(scope)
	st.grades[enrollmentID] = marks
	st.version++
	st.status = StatusSaving
	if st.statusTimer != nil {
		st.statusTimer.Stop()
	}
	s.cancelSave(st)
	key := scope.Key()
	s.pending.Add(1)
	st.saveTimer = time.AfterFunc(s.debounce, func() {
		defer s.pending.Done()
		if err := s.save(context.Background(), key); err != nil {
			s.logger.Error(fmt.Sprintf("saving grade drafts %s: %v", key, err), err)
		}
	})
	return nil
}

// Get returns the drafts of a scope held in memory.
func (s *Store) Get(scope Scope) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(scope)
}

// Restore loads the persisted drafts of a scope not held in memory yet.
// Incomplete scopes have no drafts.
func (s *Store) Restore(ctx context.Context, scope Scope) (Draft, error) {
	if err := scope.Validate(); err != nil {
		if err == ErrIncompleteScope {
			return Draft{Scope: scope, Grades: map[string]float64{}, Status: StatusIdle}, nil
		}
		return Draft{}, err
	}

	// serialized with save and Clear
	s.io.Lock()
	defer s.io.Unlock()

	s.mu.Lock()
	if _, ok := s.scopes[scope.Key()]; ok {
		defer s.mu.Unlock()
		return s.snapshot(scope), nil
	}
	s.mu.Unlock()

	data, err := s.backend.Load(ctx, scope.Key())
	if errors.Cause(err) == ErrNotFound {
		return s.Get(scope), nil
	}
	if err != nil {
		return Draft{}, errors.Wrap(err, "loading grade drafts")
	}
	var saved State
	if err := json.Unmarshal(data, &saved); err != nil {
		return Draft{}, errors.Wrap(err, "decoding grade drafts")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scopes[scope.Key()]; !ok { // not edited while loading
		st := s.state(scope)
		for id, m := range saved.Grades {
			st.grades[id] = m
		}
		st.lastSaved = saved.LastSaved
	}
	return s.snapshot(scope), nil
}

// Clear drops the drafts of a scope, in memory and in the backend.
func (s *Store) Clear(ctx context.Context, scope Scope) error {
	if err := scope.Validate(); err != nil {
		if err == ErrIncompleteScope {
			return nil
		}
		return err
	}
	s.io.Lock()
	defer s.io.Unlock()

	s.mu.Lock()
	if st, ok := s.scopes[scope.Key()]; ok {
		s.stopTimers(st)
		delete(s.scopes, scope.Key())
	}
	s.mu.Unlock()

	return errors.Wrap(s.backend.Delete(ctx, scope.Key()), "deleting grade drafts")
}

// Count returns the number of drafted marks of a scope.
func (s *Store) Count(scope Scope) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.scopes[scope.Key()]; ok {
		return countGrades(st.grades)
	}
	return 0
}

func (s *Store) Status(scope Scope) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.scopes[scope.Key()]; ok {
		return st.status
	}
	return StatusIdle
}

// Flush saves every scope whose save is still pending.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := make([]string, 0)
	for key, st := range s.scopes {
		if s.cancelSave(st) {
			pending = append(pending, key)
		}
	}
	s.mu.Unlock()

	var firstErr error
	for _, key := range pending {
		if err := s.save(ctx, key); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "flushing grade drafts %s", key)
		}
	}
	return firstErr
}

// Close flushes pending saves; the store refuses edits afterwards.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	err := s.Flush(ctx)
	s.pending.Wait()

	s.mu.Lock()
	for _, st := range s.scopes {
		s.stopTimers(st)
	}
	s.mu.Unlock()
	return err
}

func (s *Store) save(ctx context.Context, key string) error {
	s.io.Lock()
	defer s.io.Unlock()

	s.mu.Lock()
	st, ok := s.scopes[key]
	if !ok { // cleared meanwhile
		s.mu.Unlock()
		return nil
	}
	version := st.version
	state := State{Grades: copyGrades(st.grades), LastSaved: time.Now().UTC()}
	s.mu.Unlock()

	data, err := json.Marshal(state)
	if err == nil {
		err = s.backend.Save(ctx, key, data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok = s.scopes[key]
	if !ok || st.version != version { // cleared or edited meanwhile, a new save is on its way
		return errors.Wrap(err, "persisting grade drafts")
	}
	if err != nil {
		st.status = StatusIdle
		return errors.Wrap(err, "persisting grade drafts")
	}
	st.status = StatusSaved
	st.lastSaved = state.LastSaved
	if st.statusTimer != nil {
		st.statusTimer.Stop()
	}
	st.statusTimer = time.AfterFunc(s.savedTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.scopes[key]; ok && cur.version == version && cur.status == StatusSaved {
			cur.status = StatusIdle
		}
	})
	return nil
}

// callers hold s.mu
func (s *Store) state(scope Scope) *scopeState {
	st, ok := s.scopes[scope.Key()]
	if !ok {
		st = &scopeState{scope: scope, grades: make(map[string]float64), status: StatusIdle}
		s.scopes[scope.Key()] = st
	}
	return st
}

// callers hold s.mu
func (s *Store) snapshot(scope Scope) Draft {
	d := Draft{Scope: scope, Grades: map[string]float64{}, Status: StatusIdle}
	st, ok := s.scopes[scope.Key()]
	if !ok {
		return d
	}
	d.Grades = copyGrades(st.grades)
	d.Count = countGrades(st.grades)
	d.Status = st.status
	if !st.lastSaved.IsZero() {
		t := st.lastSaved
		d.LastSaved = &t
	}
	return d
}

// cancelSave stops the scheduled save of st, reporting whether one was pending.
// callers hold s.mu
func (s *Store) cancelSave(st *scopeState) bool {
	if st.saveTimer == nil || !st.saveTimer.Stop() {
		return false
	}
	st.saveTimer = nil
	s.pending.Done()
	return true
}

// callers hold s.mu
func (s *Store) stopTimers(st *scopeState) {
	s.cancelSave(st)
	if st.statusTimer != nil {
		st.statusTimer.Stop()
	}
}

func copyGrades(grades map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(grades))
	for id, m := range grades {
		out[id] = m
	}
	return out
}

func countGrades(grades map[string]float64) int {
	var n int
	for _, m := range grades {
		if !math.IsNaN(m) {
			n++
		}
	}
	return n
}
