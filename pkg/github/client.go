/*
Copyright 2025 The Github Deploy Key Operator contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"
)

// Key is a deploy key as registered on a repository.
type Key struct {
	ID       int64
	Title    string
	Key      string
	ReadOnly bool
}

// Client is the deploy key surface of the GitHub API. Errors returned by
// implementations can be told apart with IsTransient and IsPermanent.
type Client interface {
	// CreateKey registers a new deploy key on the repository.
	CreateKey(ctx context.Context, repo, title, publicKey string, readOnly bool) (*Key, error)
	// GetKey fetches a deploy key by id. A missing key is reported as
	// (nil, nil), not as an error.
	GetKey(ctx context.Context, repo string, id int64) (*Key, error)
	// ListKeys returns all deploy keys of the repository.
	ListKeys(ctx context.Context, repo string) ([]Key, error)
	// DeleteKey removes a deploy key by id. Deleting a key that is already
	// gone is a success.
	DeleteKey(ctx context.Context, repo string, id int64) error
}

type client struct {
	gh *gogithub.Client
}

// NewClient returns a Client authenticated with the given token. An empty
// endpoint selects the public GitHub API; otherwise the endpoint's /api/v3
// is used (GitHub Enterprise). The timeout bounds every single request so a
// stuck call fails into the retry path instead of blocking a worker.
func NewClient(ctx context.Context, token, endpoint string, timeout time.Duration) (Client, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	httpClient.Timeout = timeout

	gh := gogithub.NewClient(httpClient)
	if endpoint != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(endpoint, endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub endpoint %q: %w", endpoint, err)
		}
	}

	return &client{gh: gh}, nil
}

func (c *client) CreateKey(ctx context.Context, repo, title, publicKey string, readOnly bool) (*Key, error) {
	owner, name, err := splitRepository(repo)
	if err != nil {
		return nil, err
	}

	created, _, err := c.gh.Repositories.CreateKey(ctx, owner, name, &gogithub.Key{
		Title:    gogithub.String(title),
		Key:      gogithub.String(strings.TrimSpace(publicKey)),
		ReadOnly: gogithub.Bool(readOnly),
	})
	if err != nil {
		return nil, Classify(err)
	}

	return convertKey(created), nil
}

func (c *client) GetKey(ctx context.Context, repo string, id int64) (*Key, error) {
	owner, name, err := splitRepository(repo)
	if err != nil {
		return nil, err
	}

	key, resp, err := c.gh.Repositories.GetKey(ctx, owner, name, id)
	if err != nil {
		// GitHub answers 404 for a deleted key and for an invisible
		// repository alike; the repository case surfaces on the next
		// List or Create call.
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}

		return nil, Classify(err)
	}

	return convertKey(key), nil
}

func (c *client) ListKeys(ctx context.Context, repo string) ([]Key, error) {
	owner, name, err := splitRepository(repo)
	if err != nil {
		return nil, err
	}

	opts := &gogithub.ListOptions{PerPage: 100}
	var keys []Key

	for {
		page, resp, err := c.gh.Repositories.ListKeys(ctx, owner, name, opts)
		if err != nil {
			return nil, Classify(err)
		}

		for _, key := range page {
			keys = append(keys, *convertKey(key))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return keys, nil
}

func (c *client) DeleteKey(ctx context.Context, repo string, id int64) error {
	owner, name, err := splitRepository(repo)
	if err != nil {
		return err
	}

	resp, err := c.gh.Repositories.DeleteKey(ctx, owner, name, id)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil
		}

		return Classify(err)
	}

	return nil
}

func splitRepository(repo string) (string, string, error) {
	owner, name, found := strings.Cut(repo, "/")
	if !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", &permanentError{fmt.Errorf("invalid repository %q, expected owner/name", repo)}
	}

	return owner, name, nil
}

func convertKey(key *gogithub.Key) *Key {
	return &Key{
		ID:       key.GetID(),
		Title:    key.GetTitle(),
		Key:      key.GetKey(),
		ReadOnly: key.GetReadOnly(),
	}
}
