package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/lo"

	"github.com/deusflow/techdigest/internal/logger"
)

const DefaultCapacity = 2000

// SeenSet is the ordered list of item ids that were already delivered,
// oldest first.
type SeenSet struct {
	ids   []string
	index map[string]struct{}
}

// NewSeenSet builds a set from ids, keeping the first occurrence of duplicates.
func NewSeenSet(ids ...string) SeenSet {
	s := SeenSet{index: make(map[string]struct{}, len(ids))}
	s.ids = make([]string, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		s.ids = append(s.ids, id)
		s.index[id] = struct{}{}
	}
	return s
}

func (s SeenSet) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

func (s SeenSet) Len() int {
	return len(s.ids)
}

// IDs returns a copy of the ids, oldest first.
func (s SeenSet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Append returns a new set with ids added at the end. Ids already present are skipped.
func (s SeenSet) Append(ids ...string) SeenSet {
	return NewSeenSet(append(s.IDs(), ids...)...)
}

// Trim returns a set holding only the newest capacity ids.
func (s SeenSet) Trim(capacity int) SeenSet {
	if capacity <= 0 || len(s.ids) <= capacity {
		return s
	}
	return NewSeenSet(s.ids[len(s.ids)-capacity:]...)
}

// SeenStore keeps the seen ledger in a JSON array file.
type SeenStore struct {
	filePath string
	capacity int
	log      *slog.Logger
}

func NewSeenStore(filePath string, capacity int, log *slog.Logger) *SeenStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SeenStore{
		filePath: filePath,
		capacity: capacity,
		log:      logger.OrDefault(log),
	}
}

func (s *SeenStore) Path() string {
	return s.filePath
}

func (s *SeenStore) Capacity() int {
	return s.capacity
}

// Load reads the ledger. A missing, unreadable or corrupt file yields an empty set.
func (s *SeenStore) Load() SeenSet {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("seen ledger unreadable, starting empty", "path", s.filePath, "error", err)
		}
		return NewSeenSet()
	}

	if len(data) == 0 {
		return NewSeenSet()
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		s.log.Warn("seen ledger corrupt, starting empty", "path", s.filePath, "error", err)
		return NewSeenSet()
	}

	return NewSeenSet(ids...)
}

// Commit trims set to capacity and writes it out.
func (s *SeenStore) Commit(set SeenSet) error {
	ids := set.Trim(s.capacity).IDs()

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal seen ledger: %w", err)
	}

	if err := writeFileAtomic(s.filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write seen ledger: %w", err)
	}

	s.log.Debug("seen ledger saved", "path", s.filePath, "ids", len(ids))
	return nil
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// over path, so a crash never leaves a half-written ledger behind.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
