package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/praetorian-inc/aobscan/pkg/store"
)

// DatabaseName is the SQLite file inside a datastore directory.
const DatabaseName = "datastore.db"

// Datastore manages a directory-based datastore: the scan database plus,
// optionally, the content of every blob that produced a match.
type Datastore struct {
	Path      string      // Directory path (e.g., "aobscan.ds")
	Store     store.Store // SQLite store for metadata
	BlobStore *BlobStore  // Optional blob storage (nil if StoreBlobs not set)
}

// Options configures datastore behavior.
type Options struct {
	StoreBlobs bool // Enable blob storage (--store-blobs flag)
}

// BlobStore manages content-addressable blob storage.
type BlobStore struct {
	Root string
}

// Open opens or creates a datastore directory.
func Open(path string, opts Options) (*Datastore, error) {
	if path == "" {
		return nil, fmt.Errorf("datastore path is required")
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating datastore directory: %w", err)
	}

	if opts.StoreBlobs {
		if err := os.MkdirAll(filepath.Join(path, "blobs"), 0755); err != nil {
			return nil, fmt.Errorf("creating blobs directory: %w", err)
		}
	}

	// Keep datastores out of the repositories they are created in
	gitignorePath := filepath.Join(path, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("*\n"), 0644); err != nil {
		return nil, fmt.Errorf("writing .gitignore: %w", err)
	}

	s, err := store.New(store.Config{Path: filepath.Join(path, DatabaseName)})
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	ds := &Datastore{
		Path:  path,
		Store: s,
	}

	// An existing blobs directory is reopened even without StoreBlobs so
	// readers can reach blobs a previous scan kept.
	blobRoot := filepath.Join(path, "blobs")
	if info, err := os.Stat(blobRoot); err == nil && info.IsDir() {
		ds.BlobStore = &BlobStore{Root: blobRoot}
	}

	return ds, nil
}

// IsDatastore reports whether path is a datastore directory.
func IsDatastore(path string) bool {
	info, err := os.Stat(filepath.Join(path, DatabaseName))
	return err == nil && !info.IsDir()
}

// Close closes the datastore and releases resources.
func (d *Datastore) Close() error {
	if d.Store != nil {
		return d.Store.Close()
	}
	return nil
}
