package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// FileProvider persists entries in a single YAML document. Every mutation
// rewrites the document through a temp file and rename, so readers never
// observe a partial write.
type FileProvider struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

type fileDocument struct {
	Entries map[string]fileEntry `yaml:"entries"`
}

type fileEntry struct {
	Value     string     `yaml:"value"`
	ExpiresAt *time.Time `yaml:"expiresAt,omitempty"`
}

// NewFileProvider creates a provider backed by path. The parent directory is
// created on first write.
func NewFileProvider(path string) (*FileProvider, error) {
	if path == "" {
		return nil, errors.New("file provider path is required")
	}
	return &FileProvider{path: path, now: time.Now}, nil
}

// Path returns the backing file location.
func (p *FileProvider) Path() string { return p.path }

// Get returns the stored value or ErrCacheMiss.
func (p *FileProvider) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.load()
	if err != nil {
		return nil, err
	}
	entry, ok := doc.Entries[key]
	if !ok || p.expired(entry) {
		return nil, ErrCacheMiss
	}
	return []byte(entry.Value), nil
}

// Set stores value under key.
func (p *FileProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.load()
	if err != nil {
		return err
	}
	doc.Entries[key] = p.newEntry(value, ttl)
	return p.save(doc)
}

// SetNX stores value only when key is absent or expired.
func (p *FileProvider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.load()
	if err != nil {
		return false, err
	}
	if entry, ok := doc.Entries[key]; ok && !p.expired(entry) {
		return false, nil
	}
	doc.Entries[key] = p.newEntry(value, ttl)
	return true, p.save(doc)
}

// Del removes key. Removing an absent key is not an error.
func (p *FileProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Entries[key]; !ok {
		return nil
	}
	delete(doc.Entries, key)
	return p.save(doc)
}

// Close is a no-op; the file is not held open.
func (p *FileProvider) Close() error { return nil }

func (p *FileProvider) load() (fileDocument, error) {
	doc := fileDocument{Entries: map[string]fileEntry{}}
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("read %s: %w", p.path, err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", p.path, err)
	}
	if doc.Entries == nil {
		doc.Entries = map[string]fileEntry{}
	}
	return doc, nil
}

func (p *FileProvider) save(doc fileDocument) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.path, err)
	}
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", p.path, err)
	}
	return nil
}

func (p *FileProvider) newEntry(value []byte, ttl time.Duration) fileEntry {
	entry := fileEntry{Value: string(value)}
	if ttl > 0 {
		exp := p.now().Add(ttl).UTC()
		entry.ExpiresAt = &exp
	}
	return entry
}

func (p *FileProvider) expired(entry fileEntry) bool {
	return entry.ExpiresAt != nil && p.now().After(*entry.ExpiresAt)
}
