package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/darkden-lab/ozone/internal/logging"
)

var (
	// ErrNoManifest is reported for a plugin directory without a manifest file.
	ErrNoManifest = errors.New("no manifest file")
	// ErrOverwritten is reported for a manifest replaced by a later one
	// declaring the same plugin identifier.
	ErrOverwritten = errors.New("plugin identifier overwritten")
)

// FileNames lists the manifest file names probed in each plugin directory,
// in order.
var FileNames = []string{"manifest.json", "manifest.yaml", "manifest.yml"}

// LoadFailure records one plugin directory that did not produce a manifest.
type LoadFailure struct {
	Dir string `json:"dir"`
	Err error  `json:"-"`
}

func (f LoadFailure) Error() string { return f.Dir + ": " + f.Err.Error() }

// LoadResult summarises one Load. Every discovered directory ends up either
// in Loaded or in Failures.
type LoadResult struct {
	Discovered int
	Loaded     []*Manifest
	Failures   []LoadFailure
}

// Store holds the manifests of the last successful Load.
type Store struct {
	prefix    string
	validator *Validator
	logger    *slog.Logger

	mu    sync.RWMutex
	byID  map[string]*Manifest
	order []string
}

// NewStore creates a Store that only considers directories starting with
// prefix. An empty prefix accepts every directory.
func NewStore(prefix string, v *Validator, logger *slog.Logger) *Store {
	return &Store{
		prefix:    prefix,
		validator: v,
		logger:    logging.OrDiscard(logger),
		byID:      make(map[string]*Manifest),
	}
}

// Discover returns the plugin directories under dir matching the prefix,
// sorted by name.
func (s *Store) Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin folder %s: %w", dir, err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), s.prefix) {
			continue
		}
		dirs = append(dirs, filepath.Join(dir, e.Name()))
	}
	return dirs, nil
}

// Load reads every plugin directory under dir and replaces the table
// wholesale. A bad plugin is recorded as a failure and never aborts the load.
// A later manifest declaring an already loaded identifier replaces it; the
// replaced one is reported as a failure wrapping ErrOverwritten.
func (s *Store) Load(dir string) LoadResult {
	var res LoadResult

	dirs, err := s.Discover(dir)
	if err != nil {
		s.logger.Warn("plugin folder unavailable", "folder", dir, "error", err)
		res.Failures = append(res.Failures, LoadFailure{Dir: dir, Err: err})
		s.swap(map[string]*Manifest{}, nil)
		return res
	}
	res.Discovered = len(dirs)

	byID := make(map[string]*Manifest, len(dirs))
	var order []string
	for _, d := range dirs {
		m, err := s.ReadDir(d)
		if err != nil {
			s.logger.Warn("failed to load plugin manifest", "dir", d, "error", err)
			res.Failures = append(res.Failures, LoadFailure{Dir: d, Err: err})
			continue
		}

		if prev, ok := byID[m.ID()]; ok {
			s.logger.Warn("duplicate plugin identifier, keeping the later manifest",
				"plugin", m.ID(), "kept", d, "dropped", prev.Dir)
			res.Failures = append(res.Failures, LoadFailure{
				Dir: prev.Dir,
				Err: fmt.Errorf("%w by %s", ErrOverwritten, d),
			})
		} else {
			order = append(order, m.ID())
		}
		byID[m.ID()] = m
	}

	for _, id := range order {
		res.Loaded = append(res.Loaded, byID[id])
	}
	s.swap(byID, order)
	return res
}

// Reload is Load under another name, used when the folder changes.
func (s *Store) Reload(dir string) LoadResult {
	res := s.Load(dir)
	s.logger.Info("plugin manifests reloaded",
		"loaded", len(res.Loaded), "failed", len(res.Failures))
	return res
}

func (s *Store) swap(byID map[string]*Manifest, order []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = byID
	s.order = order
}

// ReadDir reads and validates the manifest of one plugin directory.
func (s *Store) ReadDir(dir string) (*Manifest, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		var m *Manifest
		if strings.HasSuffix(name, ".json") {
			m, err = s.validator.ParseJSON(data)
		} else {
			m, err = s.validator.ParseYAML(data)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		m.Dir = dir
		return m, nil
	}
	return nil, fmt.Errorf("%w in %s", ErrNoManifest, dir)
}

// Get returns the manifest declaring plugin id.
func (s *Store) Get(id string) (*Manifest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	return m, ok
}

// ByRoute returns the manifest whose base route is uri.
func (s *Store) ByRoute(uri string) (*Manifest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if m := s.byID[id]; m.Route.URI == uri {
			return m, true
		}
	}
	return nil, false
}

// All returns the loaded manifests in load order.
func (s *Store) All() []*Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Manifest, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of loaded manifests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
