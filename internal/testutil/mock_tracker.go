// Package testutil provides a mock issue tracker search endpoint for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/Sternrassler/jira-search-client/pkg/query"
)

// SearchPath is the path the mock serves searches on.
const SearchPath = "/rest/api/2/search"

// MockResponse overrides the answer to one request.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// FaultFunc decides how a request is answered. attempt counts requests for
// the same offset starting at 1. Returning nil serves the page normally.
type FaultFunc func(offset, attempt int) *MockResponse

// MockTracker is a configurable mock search server holding a fixed number
// of generated issues.
type MockTracker struct {
	server *httptest.Server

	mu           sync.RWMutex
	total        int
	maxResults   int
	fault        FaultFunc
	requestCount int
	offsetCounts map[int]int
	lastHeader   http.Header
	lastRequest  query.WireRequest
}

// NewMockTracker creates a mock server with total issues.
func NewMockTracker(total int) *MockTracker {
	mock := &MockTracker{
		total:        total,
		offsetCounts: make(map[int]int),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server base URL.
func (m *MockTracker) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockTracker) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockTracker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.offsetCounts = make(map[int]int)
	m.lastHeader = nil
	m.lastRequest = query.WireRequest{}
}

// SetTotal changes the number of issues served.
func (m *MockTracker) SetTotal(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = total
}

// SetMaxResults caps the page size served regardless of the requested
// maxResults. Zero removes the cap.
func (m *MockTracker) SetMaxResults(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxResults = n
}

// SetFault installs fault injection. Nil removes it.
func (m *MockTracker) SetFault(fault FaultFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = fault
}

// RequestCount returns the number of requests made to the server.
func (m *MockTracker) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// OffsetCount returns the number of requests made for one page offset.
func (m *MockTracker) OffsetCount(offset int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.offsetCounts[offset]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockTracker) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader.Clone()
}

// LastRequest returns the decoded body of the most recent request.
func (m *MockTracker) LastRequest() query.WireRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequest
}

func (m *MockTracker) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != SearchPath || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req query.WireRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeResponse(w, NewBadRequestResponse("invalid request body"))
		return
	}

	m.mu.Lock()
	m.requestCount++
	m.offsetCounts[req.StartAt]++
	attempt := m.offsetCounts[req.StartAt]
	m.lastHeader = r.Header.Clone()
	m.lastRequest = req
	fault := m.fault
	total := m.total
	if m.maxResults > 0 && req.MaxResults > m.maxResults {
		req.MaxResults = m.maxResults
	}
	m.mu.Unlock()

	if fault != nil {
		if resp := fault(req.StartAt, attempt); resp != nil {
			if resp.Delay > 0 {
				select {
				case <-time.After(resp.Delay):
				case <-r.Context().Done():
					return
				}
			}
			writeResponse(w, *resp)
			return
		}
	}

	writeResponse(w, MockResponse{
		StatusCode: http.StatusOK,
		Body:       m.page(req, total),
		Headers:    defaultHeaders(),
	})
}

// page renders issues [startAt, startAt+maxResults) of total.
func (m *MockTracker) page(req query.WireRequest, total int) string {
	issues := make([]map[string]any, 0, req.MaxResults)
	for i := req.StartAt; i < total && i < req.StartAt+req.MaxResults; i++ {
		issues = append(issues, Issue(m.server.URL, i))
	}

	body, _ := json.Marshal(map[string]any{
		"expand":     "schema,names",
		"startAt":    req.StartAt,
		"maxResults": req.MaxResults,
		"total":      total,
		"issues":     issues,
	})
	return string(body)
}

// Issue renders the i-th generated issue. Keys run MOCK-1, MOCK-2, ...
func Issue(baseURL string, i int) map[string]any {
	id := fmt.Sprintf("%d", 10000+i)
	return map[string]any{
		"expand": "",
		"id":     id,
		"self":   baseURL + "/rest/api/2/issue/" + id,
		"key":    IssueKey(i),
		"fields": map[string]any{
			"summary": fmt.Sprintf("Generated issue %d", i),
			"status":  map[string]any{"id": "1", "name": "Open"},
		},
	}
}

// IssueKey returns the key of the i-th generated issue.
func IssueKey(i int) string {
	return fmt.Sprintf("MOCK-%d", i+1)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func defaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type":          "application/json;charset=UTF-8",
		"X-RateLimit-Remaining": "100",
		"X-RateLimit-Limit":     "100",
	}
}

// FailFirst fails the first n attempts at offset with resp.
func FailFirst(offset, n int, resp MockResponse) FaultFunc {
	return func(o, attempt int) *MockResponse {
		if o == offset && attempt <= n {
			return &resp
		}
		return nil
	}
}

// FailAlways fails every attempt at offset with resp.
func FailAlways(offset int, resp MockResponse) FaultFunc {
	return FailFirst(offset, math.MaxInt, resp)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"errorMessages":["Internal server error"],"errors":{}}`,
		Headers:    map[string]string{"Content-Type": "application/json;charset=UTF-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"errorMessages":["Rate limit exceeded"]}`,
		Headers: map[string]string{
			"Content-Type":          "application/json;charset=UTF-8",
			"X-RateLimit-Remaining": "0",
			"Retry-After":           retryAfter,
		},
	}
}

// NewBadRequestResponse creates a 400 response such as for invalid JQL.
func NewBadRequestResponse(message string) MockResponse {
	body, _ := json.Marshal(map[string]any{"errorMessages": []string{message}, "errors": map[string]string{}})
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json;charset=UTF-8"},
	}
}

// NewLoginPageResponse creates a 200 response carrying an HTML login page,
// as served by SSO proxies in front of the tracker.
func NewLoginPageResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<!DOCTYPE html><html><body><form action="/login">Please log in</form></body></html>`,
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}
