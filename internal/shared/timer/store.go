package timer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const planDirName = "plans"

// Store persists session records as individual YAML files in a directory.
// Each record is stored as {id}.yaml; plans live under plans/{id}.yaml.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store backed by the given directory.
// The directory is created if it does not exist.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, planDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create session store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// Save persists a record to disk, creating or overwriting the file.
func (s *Store) Save(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeYAML(s.filePath(r.ID), &r, "session "+r.ID)
}

// Get loads a single record by ID. Returns os.ErrNotExist if not found.
func (s *Store) Get(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var r Record
	err := readYAML(s.filePath(id), &r)
	return r, err
}

// Delete removes a record file from disk.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// LoadAll reads all record files, oldest first. Corrupt files are skipped.
func (s *Store) LoadAll() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := yamlFiles(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read session store dir: %w", err)
	}

	var records []Record
	for _, path := range paths {
		var r Record
		if err := readYAML(path, &r); err != nil {
			continue
		}
		if r.Validate() != nil {
			continue
		}
		records = append(records, r)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// SavePlan persists a plan, creating or overwriting its file.
func (s *Store) SavePlan(p Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeYAML(s.planPath(p.ID), &p, "plan "+p.ID)
}

// DeletePlan removes a plan file from disk.
func (s *Store) DeletePlan(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.planPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete plan %s: %w", id, err)
	}
	return nil
}

// LoadPlans reads all plan files, oldest first. Corrupt files are skipped.
func (s *Store) LoadPlans() ([]Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := yamlFiles(filepath.Join(s.dir, planDirName))
	if err != nil {
		return nil, fmt.Errorf("read plan store dir: %w", err)
	}

	var plans []Plan
	for _, path := range paths {
		var p Plan
		if err := readYAML(path, &p); err != nil {
			continue
		}
		if p.Validate() != nil {
			continue
		}
		plans = append(plans, p)
	}
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].CreatedAt.Before(plans[j].CreatedAt)
	})
	return plans, nil
}

func (s *Store) filePath(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}

func (s *Store) planPath(id string) string {
	return filepath.Join(s.dir, planDirName, id+".yaml")
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}

// writeYAML writes through a temp file so a crash never leaves a truncated
// record behind.
func writeYAML(path string, v any, what string) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", what, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", what, err)
	}
	return nil
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}
