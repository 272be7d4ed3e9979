// Package httputil holds the small HTTP helpers shared by the camera poller
// and the monitor server.
package httputil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Doer is the part of *http.Client used by pollers.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetch GETs url and returns the body. Non-2xx responses and bodies larger
// than limit bytes are errors. limit <= 0 disables the size check.
func Fetch(ctx context.Context, c Doer, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	body := io.Reader(resp.Body)
	if limit > 0 {
		body = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", url, limit)
	}
	return data, nil
}

// StubResponse is one canned reply served by StubClient.
type StubResponse struct {
	Status int
	Body   []byte
	Err    error
}

// StubClient replays canned responses in order, repeating the last one once
// the queue is drained. It records every request.
type StubClient struct {
	mu        sync.Mutex
	responses []StubResponse
	next      int
	requests  []*http.Request
}

// NewStubClient returns a client serving responses in order.
func NewStubClient(responses ...StubResponse) *StubClient {
	return &StubClient{responses: responses}
}

// Do implements Doer.
func (s *StubClient) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Request: req}, nil
	}
	r := s.responses[s.next]
	if s.next < len(s.responses)-1 {
		s.next++
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &http.Response{
		StatusCode: r.Status,
		Body:       io.NopCloser(bytes.NewReader(r.Body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Requests returns the number of requests seen.
func (s *StubClient) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
