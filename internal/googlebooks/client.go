// Package googlebooks looks up Goodreads books in the Google Books volumes
// API and turns the best candidate into a landing record.
package googlebooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	books "google.golang.org/api/books/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Searcher runs one page of a volumes query
type Searcher interface {
	Search(ctx context.Context, query string, startIndex, maxResults int64) ([]*books.Volume, error)
}

// APISearcher queries the Google Books API
type APISearcher struct {
	svc *books.Service
}

// NewAPISearcher creates a searcher. Without an API key requests are sent
// unauthenticated, which the volumes endpoint allows at a lower quota.
func NewAPISearcher(ctx context.Context, apiKey string, opts ...option.ClientOption) (*APISearcher, error) {
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else {
		opts = append(opts, option.WithoutAuthentication())
	}

	svc, err := books.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create books service: %w", err)
	}
	return &APISearcher{svc: svc}, nil
}

// Search implements Searcher
func (s *APISearcher) Search(ctx context.Context, query string, startIndex, maxResults int64) ([]*books.Volume, error) {
	resp, err := s.svc.Volumes.List(query).
		PrintType("books").
		StartIndex(startIndex).
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("volumes list %q: %w", query, err)
	}
	return resp.Items, nil
}

// IsRateLimited reports whether err is an HTTP 429 from the API
func IsRateLimited(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}
