package enum

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/praetorian-inc/aobscan/pkg/types"
)

// GitEnumerator enumerates blobs from a git repository.
type GitEnumerator struct {
	config Config
	// CommitRef optionally specifies a specific commit to enumerate (defaults to HEAD)
	CommitRef string
	// History walks every commit reachable from CommitRef instead of only
	// its tree. Each blob is yielded once, attributed to the newest commit
	// that contains it.
	History bool
}

// NewGitEnumerator creates a new git enumerator.
func NewGitEnumerator(config Config) *GitEnumerator {
	return &GitEnumerator{
		config:    config,
		CommitRef: "HEAD",
	}
}

// Enumerate walks the commit tree (or history) and yields unique blobs.
// Binary blobs are yielded like any other.
func (e *GitEnumerator) Enumerate(ctx context.Context, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	repo, err := git.PlainOpen(e.config.Root)
	if err != nil {
		return fmt.Errorf("failed to open git repository: %w", err)
	}

	ref, err := repo.ResolveRevision(plumbing.Revision(e.CommitRef))
	if err != nil {
		return fmt.Errorf("failed to resolve ref %s: %w", e.CommitRef, err)
	}

	seen := make(map[plumbing.Hash]bool)

	if !e.History {
		commit, err := repo.CommitObject(*ref)
		if err != nil {
			return fmt.Errorf("failed to get commit: %w", err)
		}
		return e.walkCommit(ctx, commit, seen, callback)
	}

	iter, err := repo.Log(&git.LogOptions{From: *ref})
	if err != nil {
		return fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	return iter.ForEach(func(commit *object.Commit) error {
		return e.walkCommit(ctx, commit, seen, callback)
	})
}

// walkCommit yields every blob in the commit's tree not already in seen.
func (e *GitEnumerator) walkCommit(ctx context.Context, commit *object.Commit, seen map[plumbing.Hash]bool, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("failed to get tree: %w", err)
	}

	commitMeta := &types.CommitMetadata{
		CommitID:           commit.Hash.String(),
		AuthorName:         commit.Author.Name,
		AuthorEmail:        commit.Author.Email,
		AuthorTimestamp:    commit.Author.When,
		CommitterName:      commit.Committer.Name,
		CommitterEmail:     commit.Committer.Email,
		CommitterTimestamp: commit.Committer.When,
		Message:            commit.Message,
	}

	err = tree.Files().ForEach(func(f *object.File) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if seen[f.Hash] {
			return nil
		}
		seen[f.Hash] = true

		if e.config.MaxFileSize > 0 && f.Size > e.config.MaxFileSize {
			return nil
		}

		reader, err := f.Reader()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		content, err := readLimited(reader, 0)
		reader.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f.Name, err)
		}

		prov := types.GitProvenance{
			RepoPath: e.config.Root,
			Commit:   commitMeta,
			BlobPath: f.Name,
		}
		return callback(content, types.ComputeBlobID(content), prov)
	})
	if err != nil {
		return fmt.Errorf("failed to walk tree: %w", err)
	}
	return nil
}
