// Package draft keeps the marks a teacher has typed but not committed yet.
// Drafts are scoped to a teacher, a subject and a semester, and are written
// to a Backend shortly after the last edit.
package draft

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	keyPrefix = "grade_drafts_"
	keySep    = "_"
)

var (
	// errors
	ErrNotFound        = errors.New("draft not found")
	ErrIncompleteScope = errors.New("draft scope requires a teacher, a subject and a semester")
	ErrInvalidScope    = errors.New("draft scope IDs cannot contain '" + keySep + "'")
)

type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
)

type (
	Scope struct {
		TeacherID  string `json:"teacher_id"`
		SubjectID  string `json:"subject_id"`
		SemesterID string `json:"semester_id"`
	}

	// State is what gets persisted for a scope.
	State struct {
		Grades    map[string]float64 `json:"grades"` // {enrollmentID: marks}
		LastSaved time.Time          `json:"last_saved"`
	}

	// Draft is a snapshot of a scope.
	Draft struct {
		Scope     Scope              `json:"scope"`
		Grades    map[string]float64 `json:"grades"`
		Count     int                `json:"count"`
		Status    Status             `json:"status"`
		LastSaved *time.Time         `json:"last_saved"`
	}

	// Backend stores serialized drafts by key.
	Backend interface {
		// Load returns ErrNotFound when nothing is stored under key.
		Load(ctx context.Context, key string) ([]byte, error)
		Save(ctx context.Context, key string, data []byte) error
		// Delete succeeds when nothing is stored under key.
		Delete(ctx context.Context, key string) error
	}
)

// Complete reports whether every part of the scope is set.
func (s Scope) Complete() bool {
	return s.TeacherID != "" && s.SubjectID != "" && s.SemesterID != ""
}

// Validate returns ErrIncompleteScope or ErrInvalidScope when the scope cannot
// be stored. IDs holding the key separator would make two scopes share a key.
func (s Scope) Validate() error {
	if !s.Complete() {
		return ErrIncompleteScope
	}
	for _, id := range []string{s.TeacherID, s.SubjectID, s.SemesterID} {
		if strings.Contains(id, keySep) {
			return ErrInvalidScope
		}
	}
	return nil
}

// Key is the storage key of the scope: grade_drafts_<teacher>_<subject>_<semester>.
func (s Scope) Key() string {
	return keyPrefix + s.TeacherID + keySep + s.SubjectID + keySep + s.SemesterID
}

type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (b *MemoryBackend) Load(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (b *MemoryBackend) Save(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = append([]byte(nil), data...)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}
