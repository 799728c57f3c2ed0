package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileStoreConfig configures the YAML directory store.
type FileStoreConfig struct {
	// Path is the directory (or single file) holding policy documents.
	Path string

	// Watch enables fsnotify-based reloading on file changes.
	Watch bool

	// DebounceInterval is how long to wait after a change before
	// reloading, coalescing editor save storms. Default: 200ms.
	DebounceInterval time.Duration
}

// FileStore is a read-only Store backed by a directory of YAML policy
// documents, one document per file. Lifecycle state is declared in the
// files themselves; a file change triggers a full re-read and a reload
// notification to subscribers.
type FileStore struct {
	config *FileStoreConfig
	logger *slog.Logger

	mu       sync.RWMutex
	policies map[string]*Policy
	subs     []chan ChangeEvent
	closed   bool

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewFileStore creates a file store and performs the initial load. When
// watching is enabled, a background goroutine re-reads the directory on
// changes until Close is called.
func NewFileStore(config *FileStoreConfig, logger *slog.Logger) (*FileStore, error) {
	if config == nil || config.Path == "" {
		return nil, fmt.Errorf("file store path is required")
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &FileStore{
		config:   config,
		logger:   logger.With("component", "policy.filestore"),
		policies: make(map[string]*Policy),
		stopCh:   make(chan struct{}),
	}

	if err := s.reload(); err != nil {
		return nil, err
	}

	if config.Watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		if err := watcher.Add(config.Path); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %q: %w", config.Path, err)
		}
		s.watcher = watcher
		s.wg.Add(1)
		go s.watch()
	}

	return s, nil
}

// reload re-reads every policy document under the configured path.
// Individual malformed files are skipped with a warning so one bad file
// cannot take down the rest of the active set.
func (s *FileStore) reload() error {
	info, err := os.Stat(s.config.Path)
	if err != nil {
		return fmt.Errorf("stat %q: %w", s.config.Path, err)
	}

	loaded := make(map[string]*Policy)
	loadFile := func(path string) {
		p, err := loadPolicyFile(path)
		if err != nil {
			s.logger.Warn("skipping policy file", "path", path, "error", err)
			return
		}
		loaded[p.ID] = p
	}

	if info.IsDir() {
		err := filepath.WalkDir(s.config.Path, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			ext := filepath.Ext(path)
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}
			loadFile(path)
			return nil
		})
		if err != nil {
			return fmt.Errorf("walk %q: %w", s.config.Path, err)
		}
	} else {
		loadFile(s.config.Path)
	}

	s.mu.Lock()
	s.policies = loaded
	s.mu.Unlock()

	s.logger.Info("policies loaded", "path", s.config.Path, "count", len(loaded))
	return nil
}

func loadPolicyFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// watch reacts to file system events, debouncing bursts into one reload.
func (s *FileStore) watch() {
	defer s.wg.Done()

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-s.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.config.DebounceInterval)
			} else {
				timer.Reset(s.config.DebounceInterval)
			}
			timerCh = timer.C

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("watcher error", "error", err)

		case <-timerCh:
			timerCh = nil
			if err := s.reload(); err != nil {
				s.logger.Error("reload after file change failed", "error", err)
				continue
			}
			s.notify(ChangeEvent{Type: ChangeReloaded})
		}
	}
}

// GetActivePolicies returns the active policies for a tenant, optionally
// restricted to one module.
func (s *FileStore) GetActivePolicies(ctx context.Context, tenantID, module string) ([]*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Policy
	for _, p := range s.policies {
		if p.Status != StatusActive {
			continue
		}
		if tenantID != "" && p.TenantID != tenantID {
			continue
		}
		if module != "" && p.Module != "" && p.Module != module {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// GetPolicy returns one policy version by id.
func (s *FileStore) GetPolicy(ctx context.Context, id string) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

// Subscribe returns a channel receiving change events.
func (s *FileStore) Subscribe() <-chan ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan ChangeEvent, 16)
	s.subs = append(s.subs, ch)
	return ch
}

// Close stops the watcher and closes subscriber channels.
func (s *FileStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	return nil
}

func (s *FileStore) notify(ev ChangeEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
