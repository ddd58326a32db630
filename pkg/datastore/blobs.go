package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/praetorian-inc/aobscan/pkg/types"
)

// Store writes content to blob storage and returns the blob ID.
// Blob ID is SHA-1 hash of content (same as git blob hashing).
func (b *BlobStore) Store(content []byte) (types.BlobID, error) {
	id := types.ComputeBlobID(content)

	// Content-addressable, so an existing file already holds these bytes
	path := b.blobPath(id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}

	prefixDir := filepath.Dir(path)
	if err := os.MkdirAll(prefixDir, 0755); err != nil {
		return types.BlobID{}, fmt.Errorf("creating blob directory: %w", err)
	}

	// Concurrent writers of the same blob each use their own temp file.
	tmp, err := os.CreateTemp(prefixDir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return types.BlobID{}, fmt.Errorf("creating temp blob: %w", err)
	}
	tempPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return types.BlobID{}, fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return types.BlobID{}, fmt.Errorf("writing blob: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return types.BlobID{}, fmt.Errorf("renaming blob: %w", err)
	}

	return id, nil
}

// Get retrieves content by blob ID.
func (b *BlobStore) Get(id types.BlobID) ([]byte, error) {
	content, err := os.ReadFile(b.blobPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", id.Hex())
		}
		return nil, fmt.Errorf("reading blob: %w", err)
	}

	return content, nil
}

// Exists checks if a blob exists in storage.
func (b *BlobStore) Exists(id types.BlobID) bool {
	_, err := os.Stat(b.blobPath(id))
	return err == nil
}

// blobPath returns the file path for a blob ID.
// Uses git-style 2-char prefix: blobs/ab/cdef1234...
func (b *BlobStore) blobPath(id types.BlobID) string {
	hexID := id.Hex()
	return filepath.Join(b.Root, hexID[:2], hexID[2:])
}
