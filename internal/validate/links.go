package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/ipdd/internal/model"
	"github.com/ppiankov/ipdd/internal/util"
)

const linkMaxRetries = 3

// staleAfterDays marks a cited page whose Last-Modified is older than a year
const staleAfterDays = 365

// linkSleepFunc is the sleep function used between retries (injectable for tests)
var linkSleepFunc = time.Sleep

// LinkChecker checks cited URLs concurrently with HEAD requests and tags each
// with the citation tier of the URL text
type LinkChecker struct {
	httpClient *http.Client
	maxWorkers int
	userAgent  string
	classifier *CitationClassifier
}

// NewLinkChecker creates a link checker. maxWorkers <= 0 means 10.
func NewLinkChecker(httpConfig model.HTTPConfig, maxWorkers int, classifier *CitationClassifier) *LinkChecker {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	if classifier == nil {
		classifier = MustCitationClassifier(nil)
	}
	timeout := httpConfig.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &LinkChecker{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpConfig.HTTPProxy, httpConfig.HTTPSProxy, httpConfig.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		maxWorkers: maxWorkers,
		userAgent:  httpConfig.UserAgent,
		classifier: classifier,
	}
}

// Check checks every URL. Results are in input order; context cancellation
// marks the remaining URLs as failed rather than returning an error.
func (c *LinkChecker) Check(ctx context.Context, urls []string) []model.LinkStatus {
	results := make([]model.LinkStatus, len(urls))
	if len(urls) == 0 {
		return results
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.maxWorkers)

	for i, u := range urls {
		wg.Add(1)
		go func(idx int, rawURL string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = model.LinkStatus{URL: rawURL, Error: "context cancelled"}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = c.checkWithRetry(ctx, rawURL)
		}(i, u)
	}

	wg.Wait()
	return results
}

func (c *LinkChecker) checkOne(ctx context.Context, rawURL string) model.LinkStatus {
	result := model.LinkStatus{
		URL:  rawURL,
		Tier: c.classifier.Assess(rawURL).Tier,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		result.IsDead = true
		return result
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.IsDead = true
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		result.IsAccessible = true
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		result.IsDead = true
	}

	if final := resp.Request.URL.String(); final != rawURL {
		result.RedirectURL = final
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			result.LastModified = &t
			age := int(time.Since(t).Hours() / 24)
			result.AgeDays = &age
			result.IsStale = age > staleAfterDays
		}
	}

	return result
}

// checkWithRetry retries transient failures with exponential backoff
func (c *LinkChecker) checkWithRetry(ctx context.Context, rawURL string) model.LinkStatus {
	var result model.LinkStatus
	for attempt := 0; attempt < linkMaxRetries; attempt++ {
		result = c.checkOne(ctx, rawURL)
		if !isRetryableLinkStatus(result) {
			return result
		}
		if attempt < linkMaxRetries-1 {
			linkSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	return result
}

func isRetryableLinkStatus(result model.LinkStatus) bool {
	if result.StatusCode >= 500 && result.StatusCode < 600 {
		return true
	}
	if result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if result.Error == "" {
		return false
	}
	s := strings.ToLower(result.Error)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
