package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

const (
	fileExt           = ".json"
	compressedFileExt = ".json.zst"
)

// fileDocument is the on-disk form of one record.
type fileDocument struct {
	Record
	Meta map[string]json.RawMessage `json:"meta"`
}

// FileMetaStore keeps one JSON document per record in a directory,
// optionally zstd-compressed. Documents are loaded lazily on first access.
type FileMetaStore struct {
	dir      string
	compress bool

	mu     sync.RWMutex
	docs   map[string]*fileDocument
	loaded bool
}

// NewFileMetaStore returns a store rooted at dir. With compress set, new
// documents are written zstd-compressed; both forms are always readable.
func NewFileMetaStore(dir string, compress bool) *FileMetaStore {
	return &FileMetaStore{
		dir:      dir,
		compress: compress,
		docs:     make(map[string]*fileDocument),
	}
}

// load reads every document in the directory. Unreadable files are skipped.
func (s *FileMetaStore) load() error {
	s.docs = make(map[string]*fileDocument)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return nil
		}
		return fmt.Errorf("reading result directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, fileExt) && !strings.HasSuffix(name, compressedFileExt) {
			continue
		}
		doc, err := readDocument(filepath.Join(s.dir, name))
		if err != nil {
			slog.Debug("Skipping unreadable result file", "file", name, "error", err)
			continue
		}
		if doc.ID == "" {
			doc.ID = strings.TrimSuffix(strings.TrimSuffix(name, compressedFileExt), fileExt)
		}
		s.docs[doc.ID] = doc
	}

	s.loaded = true
	return nil
}

func (s *FileMetaStore) ensureLoaded() error {
	s.mu.RLock()
	if s.loaded {
		s.mu.RUnlock()
		return nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	return s.load()
}

// Reload forces a fresh read of the directory.
func (s *FileMetaStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileMetaStore) Create(ctx context.Context, title string) (string, error) {
	if err := s.ensureLoaded(); err != nil {
		return "", err
	}

	doc := &fileDocument{
		Record: Record{ID: uuid.NewString(), Title: title, CreatedAt: time.Now().UTC()},
		Meta:   make(map[string]json.RawMessage),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(doc); err != nil {
		return "", err
	}
	s.docs[doc.ID] = doc
	return doc.ID, nil
}

func (s *FileMetaStore) Lookup(ctx context.Context, id string) (Record, error) {
	if err := s.ensureLoaded(); err != nil {
		return Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return Record{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return doc.Record, nil
}

func (s *FileMetaStore) Get(ctx context.Context, id, key string) ([]byte, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	value, ok := doc.Meta[key]
	if !ok {
		return nil, fmt.Errorf("run %s key %s: %w", id, key, ErrNotFound)
	}
	return append([]byte(nil), value...), nil
}

func (s *FileMetaStore) Set(ctx context.Context, id, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("run %s key %s: value is not valid JSON", id, key)
	}
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}

	updated := &fileDocument{Record: doc.Record, Meta: make(map[string]json.RawMessage, len(doc.Meta)+1)}
	for k, v := range doc.Meta {
		updated.Meta[k] = v
	}
	updated.Meta[key] = append(json.RawMessage(nil), value...)

	if err := s.write(updated); err != nil {
		return err
	}
	s.docs[id] = updated
	return nil
}

func (s *FileMetaStore) List(ctx context.Context) ([]Record, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	records := make([]Record, 0, len(s.docs))
	for _, doc := range s.docs {
		records = append(records, doc.Record)
	}
	s.mu.RUnlock()

	sortNewestFirst(records)
	return records, nil
}

// write replaces the document file via a temp file and rename. The caller
// holds the write lock.
func (s *FileMetaStore) write(doc *fileDocument) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating result directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", doc.ID, err)
	}

	ext, stale := fileExt, compressedFileExt
	if s.compress {
		data = zstdEncoder.EncodeAll(data, nil)
		ext, stale = compressedFileExt, fileExt
	}

	path := filepath.Join(s.dir, doc.ID+ext)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing run %s: %w", doc.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing run %s: %w", doc.ID, err)
	}
	_ = os.Remove(filepath.Join(s.dir, doc.ID+stale))
	return nil
}

func readDocument(path string) (*fileDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, compressedFileExt) {
		if data, err = zstdDecoder.DecodeAll(data, nil); err != nil {
			return nil, err
		}
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Meta == nil {
		doc.Meta = make(map[string]json.RawMessage)
	}
	return &doc, nil
}

// Shared codecs; EncodeAll and DecodeAll are safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)
