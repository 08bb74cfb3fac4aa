// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

package formaudit

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/google/go-github/v62/github"
)

// GitHubSource fetches form definitions from the configuration
// repository through the GitHub contents API.
type GitHubSource struct {
	client *github.Client
	owner  string
	repo   string
	log    Logger
}

// NewGitHubSource returns a GitHubSource authenticated with the token
// named by cfg.TokenEnv.
func NewGitHubSource(cfg SourceConfig, log Logger) (*GitHubSource, error) {
	if log == nil {
		log = NopLogger{}
	}
	token := os.Getenv(cfg.TokenEnv)
	if token == "" {
		return nil, fmt.Errorf("environment variable %s is not set", cfg.TokenEnv)
	}
	return &GitHubSource{
		client: github.NewClient(nil).WithAuthToken(token),
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		log:    log,
	}, nil
}

// DownloadFile returns the raw bytes of a file at the given branch. A
// missing file wraps ErrNotFound.
func (s *GitHubSource) DownloadFile(ctx context.Context, branch, path string) ([]byte, error) {
	if branch == "" || path == "" {
		return nil, fmt.Errorf("branch and path must be non-empty")
	}

	s.log.Infof("downloading %s@%s from %s/%s", path, branch, s.owner, s.repo)
	file, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, path,
		&github.RepositoryContentGetOptions{Ref: branch})
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("file %s on branch %s: %w", path, branch, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("downloading %s from GitHub: %w", path, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decoding content of %s: %w", path, err)
	}
	return []byte(content), nil
}
