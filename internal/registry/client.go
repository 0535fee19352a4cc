// Package registry talks to the Banner registration portal.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neu-planner/backend/pkg/logger"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxPages  = 20
)

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
}

type Client struct {
	baseURL   string
	timeout   time.Duration
	pageSize  int
	transport http.RoundTripper
}

type Term struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type Subject struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type SectionAttribute struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// RawCourseRecord is one section row from the search results endpoint.
type RawCourseRecord struct {
	Subject               string             `json:"subject"`
	CourseNumber          string             `json:"courseNumber"`
	CourseTitle           string             `json:"courseTitle"`
	CreditHourLow         *float64           `json:"creditHourLow"`
	CourseReferenceNumber string             `json:"courseReferenceNumber"`
	TermDesc              string             `json:"termDesc"`
	SectionAttributes     []SectionAttribute `json:"sectionAttributes"`
}

type SearchResult struct {
	Success    bool              `json:"success"`
	TotalCount int               `json:"totalCount"`
	Records    []RawCourseRecord `json:"data"`
}

// HTTPError carries the status of a non-2xx portal response.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("registry error: %s %s status=%d body=%s", e.Method, e.URL, e.StatusCode, e.Body)
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		timeout:   cfg.Timeout,
		pageSize:  cfg.PageSize,
		transport: http.DefaultTransport,
	}
}

// session is one cookie-scoped conversation with the portal. Banner keeps
// the declared term and the last search in the session, so concurrent
// subject fetches each get their own.
type session struct {
	c          *Client
	httpClient *http.Client
}

func (c *Client) newSession() *session {
	jar, _ := cookiejar.New(nil)
	return &session{
		c: c,
		httpClient: &http.Client{
			Timeout:   c.timeout,
			Transport: c.transport,
			Jar:       jar,
		},
	}
}

func (c *Client) Terms(ctx context.Context, max int) ([]Term, error) {
	params := url.Values{}
	params.Set("offset", "1")
	params.Set("max", strconv.Itoa(max))

	var terms []Term
	if err := c.newSession().getJSON(ctx, "/classSearch/getTerms", params, &terms); err != nil {
		return nil, fmt.Errorf("failed to fetch terms: %w", err)
	}
	return terms, nil
}

func (c *Client) Subjects(ctx context.Context, term string) ([]Subject, error) {
	params := url.Values{}
	params.Set("term", term)
	params.Set("offset", "1")
	params.Set("max", "500")

	var subjects []Subject
	if err := c.newSession().getJSON(ctx, "/classSearch/get_subject", params, &subjects); err != nil {
		return nil, fmt.Errorf("failed to fetch subjects for %s: %w", term, err)
	}
	return subjects, nil
}

// FetchCourses declares the term and pages through every section of subject.
func (c *Client) FetchCourses(ctx context.Context, term, subject string) (*SearchResult, error) {
	s := c.newSession()
	if err := s.declareTerm(ctx, term); err != nil {
		return nil, err
	}

	result := &SearchResult{Success: true}
	for page := 0; page < maxPages; page++ {
		params := url.Values{}
		params.Set("txt_term", term)
		params.Set("txt_subject", strings.ToUpper(subject))
		params.Set("pageOffset", strconv.Itoa(page*c.pageSize))
		params.Set("pageMaxSize", strconv.Itoa(c.pageSize))
		params.Set("sortColumn", "subjectDescription")
		params.Set("sortDirection", "asc")

		var pageResult SearchResult
		if err := s.getJSON(ctx, "/searchResults/searchResults", params, &pageResult); err != nil {
			return nil, fmt.Errorf("failed to search %s in %s: %w", subject, term, err)
		}
		if !pageResult.Success {
			result.Success = false
			break
		}

		result.TotalCount = pageResult.TotalCount
		result.Records = append(result.Records, pageResult.Records...)

		if len(pageResult.Records) < c.pageSize || len(result.Records) >= pageResult.TotalCount {
			break
		}
	}

	logger.Debug("Fetched subject sections",
		zap.String("term", term),
		zap.String("subject", subject),
		zap.Int("records", len(result.Records)),
		zap.Int("total", result.TotalCount),
	)
	return result, nil
}

// CourseDescription returns the plain-text description of a section.
func (c *Client) CourseDescription(ctx context.Context, term, crn string) (string, error) {
	form := url.Values{}
	form.Set("term", term)
	form.Set("courseReferenceNumber", crn)

	body, err := c.newSession().post(ctx, "/searchResults/getCourseDescription", form)
	if err != nil {
		return "", fmt.Errorf("failed to fetch description for %s: %w", crn, err)
	}
	return ParseCourseDescription(string(body)), nil
}

func (s *session) declareTerm(ctx context.Context, term string) error {
	form := url.Values{}
	form.Set("term", term)
	form.Set("studyPath", "")
	form.Set("studyPathText", "")
	form.Set("startDatepicker", "")
	form.Set("endDatepicker", "")

	if _, err := s.post(ctx, "/term/search", form); err != nil {
		return fmt.Errorf("failed to declare term %s: %w", term, err)
	}
	return nil
}

func (s *session) getJSON(ctx context.Context, endpoint string, params url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	body, err := s.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", endpoint, err)
	}
	return nil
}

func (s *session) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.c.baseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *session) do(req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &HTTPError{
			Method:     req.Method,
			URL:        req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       snippet,
		}
	}
	return body, nil
}

// IsTransient reports whether a failed call is worth repeating.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var herr *HTTPError
	if errors.As(err, &herr) {
		switch herr.StatusCode {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return herr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}
