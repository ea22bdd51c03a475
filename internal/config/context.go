package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Context remembers the workflow chosen with `workflows use`, so that
// `requests submit` can run without --workflow.
type Context struct {
	WorkflowID   int64     `yaml:"workflow,omitempty"`
	WorkflowName string    `yaml:"workflow_name,omitempty"`
	UpdatedAt    time.Time `yaml:"updated_at,omitempty"`
}

func (c *Context) IsEmpty() bool { return c.WorkflowID == 0 }

func (c *Context) SetWorkflow(id int64, name string) {
	*c = Context{WorkflowID: id, WorkflowName: name, UpdatedAt: time.Now()}
}

func (c *Context) Clear() {
	*c = Context{UpdatedAt: time.Now()}
}

func (c *Context) String() string {
	switch {
	case c.IsEmpty():
		return "(no workflow selected)"
	case c.WorkflowName != "":
		return "workflow:" + strconv.FormatInt(c.WorkflowID, 10) + " (" + c.WorkflowName + ")"
	default:
		return "workflow:" + strconv.FormatInt(c.WorkflowID, 10)
	}
}

// ContextStore keeps the Context in a small YAML file under the config
// directory.
type ContextStore struct {
	mu   sync.Mutex
	path string
}

func NewContextStore(path string) *ContextStore {
	return &ContextStore{path: path}
}

func (s *ContextStore) Path() string { return s.path }

// Load returns an empty Context when the file does not exist yet.
func (s *ContextStore) Load() (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Context{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var c Context
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("context file %s is corrupt: %w", s.path, err)
	}
	return &c, nil
}

// Save replaces the file through a rename so a concurrent Load never sees
// half a document.
func (s *ContextStore) Save(c *Context) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".context-*.yaml")
	if err != nil {
		return fmt.Errorf("write context: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write context: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write context: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write context: %w", err)
	}
	return nil
}

// Clear deletes the file. A missing file is not an error.
func (s *ContextStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}
