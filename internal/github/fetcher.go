package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"

	"github.com/bull/docqa/internal/extract"
)

// DefaultRef is the branch read until Pin resolves a commit.
const DefaultRef = "main"

var errNoInlineContent = errors.New("file has no inline content")

// FetchedDoc is one file downloaded from the repository.
type FetchedDoc struct {
	Path    string // Relative to the fetcher's base path
	Content []byte
	SHA     string // Git blob SHA
	URL     string // raw.githubusercontent.com link at the fetched ref
}

// Fetcher reads supported files below a directory of a GitHub repository.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
	ref      string
}

// NewFetcher creates a fetcher for owner/repo rooted at basePath.
func NewFetcher(client *Client, owner, repo, basePath string) *Fetcher {
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: strings.Trim(basePath, "/"),
		ref:      DefaultRef,
	}
}

// ParseLocation splits "owner/repo[/path]" into its parts.
func ParseLocation(loc string) (owner, repo, basePath string, err error) {
	parts := strings.SplitN(strings.Trim(loc, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("invalid GitHub location %q, want owner/repo[/path]", loc)
	}
	if len(parts) == 3 {
		basePath = parts[2]
	}
	return parts[0], parts[1], basePath, nil
}

// Repository returns "owner/repo".
func (f *Fetcher) Repository() string {
	return f.owner + "/" + f.repo
}

// Ref returns the branch or commit that listing and fetching read from.
func (f *Fetcher) Ref() string {
	return f.ref
}

func (f *Fetcher) contentOptions() *github.RepositoryContentGetOptions {
	return &github.RepositoryContentGetOptions{Ref: f.ref}
}

// Pin resolves the latest commit touching the base path and reads from it
// from then on, so one ingestion run sees a single revision.
func (f *Fetcher) Pin(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(ctx, f.owner, f.repo, &github.CommitsListOptions{
		SHA:         f.ref,
		Path:        f.basePath,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return "", fmt.Errorf("list commits for %s: %w", f.Repository(), err)
	}
	if len(commits) == 0 || commits[0].SHA == nil {
		return "", fmt.Errorf("no commits found for path %q", f.basePath)
	}

	f.ref = commits[0].GetSHA()
	return f.ref, nil
}

// ListDocs returns the relative paths of every supported file below the base path.
func (f *Fetcher) ListDocs(ctx context.Context) ([]string, error) {
	var docs []string
	if err := f.walk(ctx, f.basePath, "", &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (f *Fetcher) walk(ctx context.Context, dir, rel string, docs *[]string) error {
	_, entries, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, dir, f.contentOptions())
	if err != nil {
		return fmt.Errorf("failed to get contents of %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.GetName()
		if name == "" {
			continue
		}
		switch entry.GetType() {
		case "file":
			if extract.Supported(name) {
				*docs = append(*docs, path.Join(rel, name))
			}
		case "dir":
			if err := f.walk(ctx, path.Join(dir, name), path.Join(rel, name), docs); err != nil {
				return err
			}
		}
	}
	return nil
}

// FetchDoc downloads one file by its path relative to the base path.
func (f *Fetcher) FetchDoc(ctx context.Context, relativePath string) (*FetchedDoc, error) {
	fullPath := path.Join(f.basePath, relativePath)

	file, _, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, f.contentOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%s is a directory", fullPath)
	}

	content, err := decodeContent(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", fullPath, err)
	}

	return &FetchedDoc{
		Path:    relativePath,
		Content: content,
		SHA:     file.GetSHA(),
		URL:     fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s", f.Repository(), f.ref, fullPath),
	}, nil
}

// decodeContent returns file bytes. The contents API wraps base64 at 60 columns.
func decodeContent(fc *github.RepositoryContent) ([]byte, error) {
	if fc.Content == nil {
		return nil, fmt.Errorf("%w (size %d)", errNoInlineContent, fc.GetSize())
	}
	if enc := fc.GetEncoding(); enc != "" && enc != "base64" {
		return []byte(*fc.Content), nil
	}
	raw := strings.NewReplacer("\n", "", "\r", "").Replace(*fc.Content)
	return base64.StdEncoding.DecodeString(raw)
}
