// Package repository stores uploaded contract code on disk, addressed by
// the hash of its bytes.
package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/govm-net/contractkit/core"
)

// ErrCodeNotFound is returned by GetCode for unknown hashes.
var ErrCodeNotFound = core.ErrCodeNotFound

const (
	codeFile     = "code.wasm"
	metadataFile = "metadata.json"
)

// Manager is a content addressed code store. Each code blob lives in a
// directory named after its hash.
type Manager struct {
	mu      sync.RWMutex
	rootDir string
}

// CodeMetadata is written next to every stored blob.
type CodeMetadata struct {
	Hash       core.Hash `json:"hash"`
	Size       int       `json:"size"`
	UploadTime time.Time `json:"upload_time"`
}

// NewManager creates a manager rooted at rootDir, creating it if needed.
func NewManager(rootDir string) (*Manager, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &Manager{rootDir: rootDir}, nil
}

// RegisterCode stores code and returns its hash. Registering the same code
// twice is a no-op that returns the same hash.
func (m *Manager) RegisterCode(code []byte) (core.Hash, error) {
	hash := core.HashBytes(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	dir := m.codeDir(hash)
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); err == nil {
		return hash, nil
	} else if !os.IsNotExist(err) {
		return hash, fmt.Errorf("failed to check code directory: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return hash, fmt.Errorf("failed to create code directory: %w", err)
	}
	if err := m.saveFiles(dir, hash, code); err != nil {
		os.RemoveAll(dir)
		return hash, err
	}
	return hash, nil
}

// GetCode returns the code stored under hash. The content is verified
// against the hash.
func (m *Manager) GetCode(hash core.Hash) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	code, err := os.ReadFile(filepath.Join(m.codeDir(hash), codeFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCodeNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read code: %w", err)
	}
	if got := core.HashBytes(code); got != hash {
		return nil, fmt.Errorf("code %s is corrupt: content hash %s", hash, got)
	}
	return code, nil
}

// Has reports whether code with the given hash is stored.
func (m *Manager) Has(hash core.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := os.Stat(filepath.Join(m.codeDir(hash), metadataFile))
	return err == nil
}

// Metadata returns the metadata recorded for hash.
func (m *Manager) Metadata(hash core.Hash) (*CodeMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, err := os.ReadFile(filepath.Join(m.codeDir(hash), metadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCodeNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var md CodeMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &md, nil
}

func (m *Manager) codeDir(hash core.Hash) string {
	return filepath.Join(m.rootDir, hash.String())
}

// saveFiles writes the code first and the metadata last; a directory
// without metadata is an interrupted upload.
func (m *Manager) saveFiles(dir string, hash core.Hash, code []byte) error {
	if err := os.WriteFile(filepath.Join(dir, codeFile), code, 0644); err != nil {
		return fmt.Errorf("failed to save code: %w", err)
	}

	metadata, err := json.MarshalIndent(CodeMetadata{
		Hash:       hash,
		Size:       len(code),
		UploadTime: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), metadata, 0644); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}
