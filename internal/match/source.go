package match

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Bout is the presently-live real-world bout as reported by the
// external match-data source.
type Bout struct {
	Fighter1  string `json:"fighter1"`
	Fighter2  string `json:"fighter2"`
	Freshness string `json:"freshness"`
}

// BoutResult is a concluded bout in the source's history.
type BoutResult struct {
	ID       int64  `json:"id"`
	Fighter1 string `json:"fighter1"`
	Fighter2 string `json:"fighter2"`
	Winner   string `json:"winner"`
}

// Source is the external match-data collaborator. Any call may fail
// transiently (network); such failures are retryable by the caller and
// are not retried here beyond the controller's explicit re-poll step.
type Source interface {
	// CurrentBout returns the bout currently in progress.
	CurrentBout(ctx context.Context) (*Bout, error)

	// BoutAfter returns the next bout in the source's sequence after
	// id, or nil when the sequence has not advanced past it.
	BoutAfter(ctx context.Context, id int64) (*BoutResult, error)

	// LatestBout returns the most recent bout in the source's full
	// history, or nil when the history is empty.
	LatestBout(ctx context.Context) (*BoutResult, error)
}

// HTTPSource implements Source against the bout feed's JSON API.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a client for the bout feed at baseURL.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSource) get(ctx context.Context, path string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("match: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("match: bout feed unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("match: bout feed returned %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("match: decode %s: %w", path, err)
	}
	return true, nil
}

func (s *HTTPSource) CurrentBout(ctx context.Context) (*Bout, error) {
	var b Bout
	ok, err := s.get(ctx, "/current", &b)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("match: no current bout")
	}
	return &b, nil
}

func (s *HTTPSource) BoutAfter(ctx context.Context, id int64) (*BoutResult, error) {
	var r BoutResult
	ok, err := s.get(ctx, "/matches?after="+url.QueryEscape(strconv.FormatInt(id, 10)), &r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *HTTPSource) LatestBout(ctx context.Context) (*BoutResult, error) {
	var r BoutResult
	ok, err := s.get(ctx, "/matches/latest", &r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &r, nil
}
