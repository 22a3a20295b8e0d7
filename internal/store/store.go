package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sm8ke1/pulsenet/internal/domain"
)

// maxLogEntries caps the persisted log; oldest entries are dropped.
const maxLogEntries = 200

var (
	ErrNotFound     = errors.New("host not found")
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultHosts is the built-in registry contents on first run.
func DefaultHosts() []domain.Host {
	return []domain.Host{
		{Label: "Google DNS", Address: "8.8.8.8", Origin: domain.OriginDefault},
		{Label: "Cloudflare DNS", Address: "1.1.1.1", Origin: domain.OriginDefault},
		{Label: "Google", Address: "google.com", Origin: domain.OriginDefault},
		{Label: "YouTube", Address: "youtube.com", Origin: domain.OriginDefault},
	}
}

type state struct {
	Hosts []domain.Host     `json:"hosts"`
	Logs  []domain.LogEntry `json:"logs"`
	Prefs map[string]string `json:"prefs"`
}

// Store is the application state: host registry, capped log, and user
// preferences. Loaded once at startup; every mutation goes through a
// command method and is flushed to disk before it returns.
type Store struct {
	mu    sync.RWMutex
	path  string
	state state
}

// Open loads the state file under dataDir, creating it from the given
// defaults on first run. Defaults missing from an existing file (a new
// release shipping an extra built-in) are appended.
func Open(dataDir string, defaults []domain.Host) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}

	s := &Store{
		path:  filepath.Join(dataDir, "state.json"),
		state: state{Prefs: map[string]string{}},
	}

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// first run, fall through to seeding
	case err != nil:
		return nil, fmt.Errorf("read state: %w", err)
	default:
		if err := json.Unmarshal(raw, &s.state); err != nil {
			return nil, fmt.Errorf("parse state: %w", err)
		}
		if s.state.Prefs == nil {
			s.state.Prefs = map[string]string{}
		}
	}

	changed := false
	for _, d := range defaults {
		if !s.hasDefault(d) {
			d.ID = defaultHostID(d)
			s.state.Hosts = append(s.state.Hosts, d)
			changed = true
		}
	}
	if changed || errors.Is(err, os.ErrNotExist) {
		s.normalizeOrder()
		if err := s.flushLocked(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) hasDefault(d domain.Host) bool {
	for _, h := range s.state.Hosts {
		if h.Origin == domain.OriginDefault && h.Label == d.Label && h.Address == d.Address {
			return true
		}
	}
	return false
}

// defaultHostID derives a stable id from the built-in host's identity so
// re-seeding never duplicates entries.
func defaultHostID(h domain.Host) domain.HostID {
	slug := strings.ToLower(h.Label + "-" + h.Address)
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	return domain.HostID("default-" + slug)
}

// ---- host commands ----

func (s *Store) Hosts() []domain.Host {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Host, len(s.state.Hosts))
	copy(out, s.state.Hosts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (s *Store) Host(id domain.HostID) (domain.Host, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.state.Hosts {
		if h.ID == id {
			return h, true
		}
	}
	return domain.Host{}, false
}

func (s *Store) AddHost(label, address string) (domain.Host, error) {
	label = strings.TrimSpace(label)
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Host{}, ErrInvalidInput
	}
	if label == "" {
		label = address
	}

	h := domain.Host{
		ID:      domain.HostID(uuid.NewString()),
		Label:   label,
		Address: address,
		Origin:  domain.OriginUser,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	h.Position = len(s.state.Hosts)
	s.state.Hosts = append(s.state.Hosts, h)
	s.normalizeOrder()
	return h, s.flushLocked()
}

func (s *Store) UpdateHost(id domain.HostID, label, address string) (domain.Host, error) {
	label = strings.TrimSpace(label)
	address = strings.TrimSpace(address)
	if label == "" || address == "" {
		return domain.Host{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Hosts {
		if s.state.Hosts[i].ID == id {
			s.state.Hosts[i].Label = label
			s.state.Hosts[i].Address = address
			return s.state.Hosts[i], s.flushLocked()
		}
	}
	return domain.Host{}, ErrNotFound
}

func (s *Store) DeleteHost(id domain.HostID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Hosts {
		if s.state.Hosts[i].ID == id {
			s.state.Hosts = append(s.state.Hosts[:i], s.state.Hosts[i+1:]...)
			s.normalizeOrder()
			return s.flushLocked()
		}
	}
	return ErrNotFound
}

func (s *Store) SetPinned(id domain.HostID, pinned bool) error {
	return s.setFlag(id, func(h *domain.Host) { h.Pinned = pinned })
}

func (s *Store) SetPaused(id domain.HostID, paused bool) error {
	return s.setFlag(id, func(h *domain.Host) { h.Paused = paused })
}

func (s *Store) setFlag(id domain.HostID, apply func(*domain.Host)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Hosts {
		if s.state.Hosts[i].ID == id {
			apply(&s.state.Hosts[i])
			s.normalizeOrder()
			return s.flushLocked()
		}
	}
	return ErrNotFound
}

// Reorder applies the given id order. Ids missing from the list keep
// their relative order after the listed ones; unknown ids are rejected.
func (s *Store) Reorder(ids []domain.HostID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rank := make(map[domain.HostID]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}
	for id := range rank {
		if _, ok := s.findLocked(id); !ok {
			return ErrNotFound
		}
	}

	for i := range s.state.Hosts {
		if r, ok := rank[s.state.Hosts[i].ID]; ok {
			s.state.Hosts[i].Position = r
		} else {
			s.state.Hosts[i].Position = len(ids) + s.state.Hosts[i].Position
		}
	}
	s.normalizeOrder()
	return s.flushLocked()
}

func (s *Store) findLocked(id domain.HostID) (int, bool) {
	for i := range s.state.Hosts {
		if s.state.Hosts[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// normalizeOrder re-numbers positions 0..n-1 with pinned hosts always
// preceding unpinned ones, preserving relative order inside each group.
func (s *Store) normalizeOrder() {
	sort.SliceStable(s.state.Hosts, func(i, j int) bool {
		a, b := s.state.Hosts[i], s.state.Hosts[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		return a.Position < b.Position
	})
	for i := range s.state.Hosts {
		s.state.Hosts[i].Position = i
	}
}

// ---- log commands ----

func (s *Store) AppendLog(e domain.LogEntry) (domain.LogEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Logs = append(s.state.Logs, e)
	if len(s.state.Logs) > maxLogEntries {
		s.state.Logs = s.state.Logs[len(s.state.Logs)-maxLogEntries:]
	}
	return e, s.flushLocked()
}

// Logs returns entries newest-first, optionally filtered by category.
func (s *Store) Logs(category domain.LogCategory) []domain.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LogEntry, 0, len(s.state.Logs))
	for i := len(s.state.Logs) - 1; i >= 0; i-- {
		e := s.state.Logs[i]
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s *Store) ClearLogs() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Logs = nil
	return s.flushLocked()
}

// ---- preference commands ----

func (s *Store) Pref(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Prefs[key]
}

func (s *Store) SetPref(key, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Prefs[key] = value
	return s.flushLocked()
}

// ---- persistence ----

func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
