package recipe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
)

// ErrNotFound is returned by Get when no recipe carries the requested
// work_order_type.
var ErrNotFound = errors.New("recipe not found")

// FileError names one recipe document that failed to load and why.
type FileError struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// LoadStatus is the result of a catalog (re)load.
type LoadStatus struct {
	Loaded int         `json:"loaded"`
	Errors []FileError `json:"errors"`
}

type catalog struct {
	byType map[string]*Recipe
}

// Store holds a read-only-after-load recipe catalog: concurrent
// Get/ListAll need no lock because reload swaps in a whole new catalog via
// an atomic pointer rather than mutating one in place.
type Store struct {
	ptr atomic.Pointer[catalog]
}

// NewStore returns an empty store; call Reload to populate it.
func NewStore() *Store {
	s := &Store{}
	s.ptr.Store(&catalog{byType: map[string]*Recipe{}})
	return s
}

// Reload enumerates dir, parses and validates each document (skipping any
// file named schema.*), and atomically swaps in the resulting catalog. A
// per-file failure is recorded in the returned status; other files still
// load.
func (s *Store) Reload(dir string) (LoadStatus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return LoadStatus{}, fmt.Errorf("reading catalog directory %q: %w", dir, err)
	}

	next := &catalog{byType: map[string]*Recipe{}}
	var status LoadStatus

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(strings.ToLower(name), "schema.") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			status.Errors = append(status.Errors, FileError{File: name, Reason: err.Error()})
			continue
		}

		r, err := loadOne(data)
		if err != nil {
			status.Errors = append(status.Errors, FileError{File: name, Reason: err.Error()})
			continue
		}

		if _, dup := next.byType[r.WorkOrderType]; dup {
			status.Errors = append(status.Errors, FileError{
				File:   name,
				Reason: fmt.Sprintf("duplicate work_order_type %q across catalog", r.WorkOrderType),
			})
			continue
		}

		next.byType[r.WorkOrderType] = r
		status.Loaded++
	}

	s.ptr.Store(next)
	return status, nil
}

// Get returns the recipe for workOrderType, or ErrNotFound.
func (s *Store) Get(workOrderType string) (*Recipe, error) {
	c := s.ptr.Load()
	r, ok := c.byType[workOrderType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, workOrderType)
	}
	return r, nil
}

// ListAll returns every loaded recipe, ordered by work_order_type for
// deterministic output (used by the matcher to enumerate the catalog).
func (s *Store) ListAll() []*Recipe {
	c := s.ptr.Load()
	out := make([]*Recipe, 0, len(c.byType))
	for _, r := range c.byType {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkOrderType < out[j].WorkOrderType })
	return out
}

// loadOne runs the full validation pipeline on one recipe document.
// The first failing phase aborts the load of that file.
func loadOne(data []byte) (*Recipe, error) {
	r, err := DecodeStrict(data)
	if err != nil {
		return nil, err
	}
	if errs := ValidateSemantic(r); len(errs) > 0 {
		return nil, joinValidationErrors(errs)
	}
	if errs := ValidateDomain(r); len(errs) > 0 {
		return nil, joinValidationErrors(errs)
	}
	if errs := validateJumpTargets(r); len(errs) > 0 {
		return nil, joinValidationErrors(errs)
	}
	return r, nil
}

func joinValidationErrors(errs []*ValidationError) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return errors.New(strings.Join(msgs, "; "))
}
