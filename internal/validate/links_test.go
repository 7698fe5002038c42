package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/ipdd/internal/model"
)

func init() {
	// Disable retry sleep in all tests for fast execution
	linkSleepFunc = func(d time.Duration) {}
}

func newTestLinkChecker() *LinkChecker {
	return NewLinkChecker(model.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "ipdd-test"}, 20, nil)
}

func TestLinkChecker_CheckOne_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD request, got %s", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != "ipdd-test" {
			t.Errorf("Expected user agent ipdd-test, got %q", ua)
		}
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2023 15:04:05 GMT")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestLinkChecker().checkOne(context.Background(), server.URL+"/fda/guidance")

	if !result.IsAccessible {
		t.Error("Expected link to be accessible")
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("Expected status code 200, got %d", result.StatusCode)
	}
	if result.LastModified == nil || result.AgeDays == nil {
		t.Fatal("Expected Last-Modified to be parsed")
	}
	if !result.IsStale {
		t.Error("Expected a 2023 page to be stale")
	}
	if result.Tier != model.Tier1 {
		t.Errorf("Expected tier 1 for an fda path, got %v", result.Tier)
	}
}

func TestLinkChecker_CheckOne_404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result := newTestLinkChecker().checkOne(context.Background(), server.URL)

	if result.IsAccessible {
		t.Error("Expected 404 link not to be accessible")
	}
	if !result.IsDead {
		t.Error("Expected 404 link to be marked as dead")
	}
}

func TestLinkChecker_CheckOne_Redirect(t *testing.T) {
	finalServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer finalServer.Close()

	redirectServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, finalServer.URL, http.StatusMovedPermanently)
	}))
	defer redirectServer.Close()

	result := newTestLinkChecker().checkOne(context.Background(), redirectServer.URL)

	if !result.IsAccessible {
		t.Error("Expected redirected link to be accessible")
	}
	if result.RedirectURL != finalServer.URL {
		t.Errorf("Expected redirect to %s, got %s", finalServer.URL, result.RedirectURL)
	}
}

func TestLinkChecker_Check_MixedResultsInOrder(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	gone := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer gone.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	results := newTestLinkChecker().Check(context.Background(), []string{ok.URL, gone.URL, broken.URL})

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if !results[0].IsAccessible || results[0].URL != ok.URL {
		t.Errorf("Expected first link accessible, got %+v", results[0])
	}
	if !results[1].IsDead {
		t.Error("Expected 410 link to be dead")
	}
	if results[2].IsAccessible || results[2].StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected 500 result, got %+v", results[2])
	}
}

func TestLinkChecker_Check_Empty(t *testing.T) {
	if results := newTestLinkChecker().Check(context.Background(), nil); len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}
}

func TestLinkChecker_Check_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	results := newTestLinkChecker().Check(ctx, []string{server.URL})

	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].IsAccessible {
		t.Error("Expected link not to be accessible after context cancellation")
	}
}

func TestLinkChecker_RetriesTransient(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestLinkChecker().checkWithRetry(context.Background(), server.URL)

	if !result.IsAccessible {
		t.Error("Expected accessible after retry")
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestLinkChecker_NoRetryOn404(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	newTestLinkChecker().checkWithRetry(context.Background(), server.URL)

	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts.Load())
	}
}

func TestIsRetryableLinkStatus(t *testing.T) {
	tests := []struct {
		desc      string
		result    model.LinkStatus
		retryable bool
	}{
		{"200 OK", model.LinkStatus{StatusCode: 200, IsAccessible: true}, false},
		{"404 Not Found", model.LinkStatus{StatusCode: 404, IsDead: true}, false},
		{"502 Bad Gateway", model.LinkStatus{StatusCode: 502}, true},
		{"429 Too Many Requests", model.LinkStatus{StatusCode: 429}, true},
		{"timeout error", model.LinkStatus{Error: "request failed: timeout"}, true},
		{"connection reset", model.LinkStatus{Error: "request failed: connection reset by peer"}, true},
		{"create request error", model.LinkStatus{Error: "create request: invalid URL"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := isRetryableLinkStatus(tt.result); got != tt.retryable {
				t.Errorf("isRetryableLinkStatus(%s) = %v, want %v", tt.desc, got, tt.retryable)
			}
		})
	}
}

func TestNewLinkChecker_DefaultWorkers(t *testing.T) {
	if c := NewLinkChecker(model.HTTPConfig{}, 0, nil); c.maxWorkers != 10 {
		t.Errorf("Expected default max workers to be 10, got %d", c.maxWorkers)
	}
}
