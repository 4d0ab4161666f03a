package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bull/docqa/internal/extract"
	"github.com/bull/docqa/internal/github"
	"github.com/bull/docqa/internal/storage"
)

// Ref identifies one document within a Source.
type Ref struct {
	Name string // File name recorded with the document
	Path string // Source-specific locator
}

// Source lists and fetches raw documents.
type Source interface {
	List(ctx context.Context) ([]Ref, error)
	Fetch(ctx context.Context, ref Ref) ([]byte, error)
}

// FileSource reads documents from local paths. Each path may be a file, a
// glob pattern or a directory, which is walked recursively.
type FileSource struct {
	paths   []string
	maxSize int64
}

// NewFileSource creates a source over the given paths.
func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: paths}
}

// WithMaxSize makes Fetch refuse files larger than n bytes without reading them.
func (s *FileSource) WithMaxSize(n int64) *FileSource {
	s.maxSize = n
	return s
}

// List expands the configured paths. Directory entries without a supported
// extension are skipped; explicitly named files are always included.
func (s *FileSource) List(ctx context.Context) ([]Ref, error) {
	seen := make(map[string]bool)
	var refs []Ref
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			refs = append(refs, Ref{Name: filepath.Base(p), Path: p})
		}
	}

	for _, p := range s.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %s", p)
		}

		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", m, err)
			}
			if !info.IsDir() {
				add(m)
				continue
			}
			var found []string
			err = filepath.WalkDir(m, func(fp string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && extract.Supported(d.Name()) {
					found = append(found, fp)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walk %s: %w", m, err)
			}
			sort.Strings(found)
			for _, fp := range found {
				add(fp)
			}
		}
	}
	return refs, nil
}

// Fetch reads the file at ref.Path.
func (s *FileSource) Fetch(_ context.Context, ref Ref) ([]byte, error) {
	if s.maxSize > 0 {
		info, err := os.Stat(ref.Path)
		if err != nil {
			return nil, err
		}
		if info.Size() > s.maxSize {
			return nil, fmt.Errorf("%s: %w (%d bytes, max %d)", ref.Path, storage.ErrFileTooLarge, info.Size(), s.maxSize)
		}
	}
	return os.ReadFile(ref.Path)
}

// docFetcher is the part of github.Fetcher a GitHubSource needs.
type docFetcher interface {
	Pin(ctx context.Context) (string, error)
	ListDocs(ctx context.Context) ([]string, error)
	FetchDoc(ctx context.Context, relativePath string) (*github.FetchedDoc, error)
}

// GitHubSource reads supported files from a GitHub repository directory.
type GitHubSource struct {
	fetcher docFetcher
}

// NewGitHubSource adapts a fetcher to a Source.
func NewGitHubSource(fetcher *github.Fetcher) *GitHubSource {
	return &GitHubSource{fetcher: fetcher}
}

// List pins the fetcher to the latest commit, then returns every supported
// file below its base path.
func (s *GitHubSource) List(ctx context.Context) ([]Ref, error) {
	if _, err := s.fetcher.Pin(ctx); err != nil {
		return nil, err
	}
	paths, err := s.fetcher.ListDocs(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]Ref, len(paths))
	for i, p := range paths {
		refs[i] = Ref{Name: path.Base(p), Path: p}
	}
	return refs, nil
}

// Fetch downloads the file at ref.Path.
func (s *GitHubSource) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	doc, err := s.fetcher.FetchDoc(ctx, ref.Path)
	if err != nil {
		return nil, err
	}
	return doc.Content, nil
}
