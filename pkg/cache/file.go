package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// maxIndexEntries bounds the LRU index independently of the byte limit.
const maxIndexEntries = 4096

// Fingerprint derives the content address for a provider track.
func Fingerprint(provider, trackID string) string {
	sum := sha256.Sum256([]byte(provider + ":" + trackID))
	return hex.EncodeToString(sum[:])
}

// FileCache is a content-addressed on-disk cache for resolved stream data.
// Entries are write-once: a Put for an already-present fingerprint is a
// no-op. Total size is bounded; least-recently-used entries are evicted,
// their files deleted.
type FileCache struct {
	dir    string
	limit  int64
	logger *log.Logger

	mu    sync.Mutex
	index *lru.Cache[string, int64] // fingerprint -> file size
	size  int64
}

// NewFileCache opens (creating if needed) a file cache rooted at dir,
// bounded at limitBytes. Files already on disk are indexed oldest-first so
// recency survives a restart approximately.
func NewFileCache(dir string, limitBytes int64, logger *log.Logger) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create cache dir")
	}
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "filecache"})
	}

	fc := &FileCache{dir: dir, limit: limitBytes, logger: logger}
	index, err := lru.NewWithEvict(maxIndexEntries, fc.onEvict)
	if err != nil {
		return nil, err
	}
	fc.index = index

	if err := fc.loadExisting(); err != nil {
		return nil, err
	}
	return fc, nil
}

// onEvict runs inside index mutations while fc.mu is held; it must not lock.
func (fc *FileCache) onEvict(fingerprint string, size int64) {
	fc.size -= size
	if err := os.Remove(fc.path(fingerprint)); err != nil && !os.IsNotExist(err) {
		fc.logger.Warn("evict failed", "fingerprint", fingerprint, "err", err)
	}
}

func (fc *FileCache) loadExisting() error {
	dirents, err := os.ReadDir(fc.dir)
	if err != nil {
		return errors.Wrap(err, "scan cache dir")
	}

	type existing struct {
		name string
		size int64
		mod  int64
	}
	files := make([]existing, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, existing{name: de.Name(), size: info.Size(), mod: info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod < files[j].mod })

	fc.mu.Lock()
	defer fc.mu.Unlock()
	for _, f := range files {
		fc.index.Add(f.name, f.size)
		fc.size += f.size
	}
	fc.enforceLimitLocked()
	return nil
}

// Get returns the cached bytes for a fingerprint, bumping its recency.
func (fc *FileCache) Get(fingerprint string) ([]byte, bool) {
	fc.mu.Lock()
	_, ok := fc.index.Get(fingerprint)
	fc.mu.Unlock()
	if !ok {
		return nil, false
	}

	data, err := os.ReadFile(fc.path(fingerprint))
	if err != nil {
		// File vanished underneath us; drop the index entry.
		fc.mu.Lock()
		fc.index.Remove(fingerprint)
		fc.mu.Unlock()
		return nil, false
	}
	return data, true
}

// Put stores data under a fingerprint. Entries are immutable: putting an
// existing fingerprint is a no-op.
func (fc *FileCache) Put(fingerprint string, data []byte) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.index.Contains(fingerprint) {
		return nil
	}

	tmp, err := os.CreateTemp(fc.dir, "put-*")
	if err != nil {
		return errors.Wrap(err, "cache write")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "cache write")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "cache write")
	}
	if err := os.Rename(tmp.Name(), fc.path(fingerprint)); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "cache write")
	}

	fc.index.Add(fingerprint, int64(len(data)))
	fc.size += int64(len(data))
	fc.enforceLimitLocked()
	return nil
}

// Refresh replaces an entry's contents. This is the only write path that
// may overwrite an existing fingerprint.
func (fc *FileCache) Refresh(fingerprint string, data []byte) error {
	fc.mu.Lock()
	fc.index.Remove(fingerprint)
	fc.mu.Unlock()
	return fc.Put(fingerprint, data)
}

// Path returns the on-disk location for a fingerprint, for callers that
// stream instead of slurping. The entry may be evicted at any time.
func (fc *FileCache) Path(fingerprint string) (string, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if !fc.index.Contains(fingerprint) {
		return "", false
	}
	return fc.path(fingerprint), true
}

// Len returns the number of cached entries.
func (fc *FileCache) Len() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.index.Len()
}

// Size returns the total bytes held.
func (fc *FileCache) Size() int64 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.size
}

// Prune drops entries whose files are older than maxAge, plus any files on
// disk with no index entry. Returns the number of files removed.
func (fc *FileCache) Prune(maxAge int64) int {
	dirents, err := os.ReadDir(fc.dir)
	if err != nil {
		fc.logger.Warn("prune scan failed", "err", err)
		return 0
	}

	removed := 0
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		age := nowUnix() - info.ModTime().Unix()
		if !fc.index.Contains(de.Name()) || (maxAge > 0 && age > maxAge) {
			if fc.index.Remove(de.Name()) {
				removed++ // onEvict deleted the file
			} else if err := os.Remove(filepath.Join(fc.dir, de.Name())); err == nil {
				removed++
			}
		}
	}
	return removed
}

func (fc *FileCache) enforceLimitLocked() {
	for fc.limit > 0 && fc.size > fc.limit && fc.index.Len() > 0 {
		fc.index.RemoveOldest()
	}
}

func (fc *FileCache) path(fingerprint string) string {
	return filepath.Join(fc.dir, fingerprint)
}
