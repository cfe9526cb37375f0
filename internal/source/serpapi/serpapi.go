// Package serpapi implements a job source backed by the SerpAPI Google Jobs
// engine (https://serpapi.com/google-jobs-api).
package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mattanmr/job-posting-aggregator/internal/source"
)

const (
	defaultEndpoint = "https://serpapi.com/search.json"
	sourceName      = "serpapi"

	maxHighlightSections = 2
	maxHighlightItems    = 3
)

type jobResult struct {
	Title              string             `json:"title"`
	CompanyName        string             `json:"company_name"`
	Location           string             `json:"location"`
	Description        string             `json:"description"`
	ShareLink          string             `json:"share_link"`
	ApplyOptions       []applyOption      `json:"apply_options"`
	JobHighlights      []jobHighlight     `json:"job_highlights"`
	DetectedExtensions detectedExtensions `json:"detected_extensions"`
}

type applyOption struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

type jobHighlight struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
}

type detectedExtensions struct {
	PostedAt     string `json:"posted_at"`
	Salary       string `json:"salary"`
	ScheduleType string `json:"schedule_type"`
}

type searchResponse struct {
	Error       string      `json:"error"`
	JobsResults []jobResult `json:"jobs_results"`
}

type Source struct {
	apiKey       string
	endpoint     string
	client       *http.Client
	googleDomain string
	country      string
	language     string
	now          func() time.Time
}

func New(opts ...Option) *Source {
	s := &Source{
		endpoint:     defaultEndpoint,
		client:       http.DefaultClient,
		googleDomain: "google.com",
		country:      "us",
		language:     "en",
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type Option func(*Source)

func WithAPIKey(key string) Option {
	return func(s *Source) { s.apiKey = key }
}

func WithEndpoint(url string) Option {
	return func(s *Source) { s.endpoint = url }
}

func WithClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

func WithCountry(gl string) Option {
	return func(s *Source) { s.country = gl }
}

func WithLanguage(hl string) Option {
	return func(s *Source) { s.language = hl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

func (s *Source) Name() string { return sourceName }

func (s *Source) Search(ctx context.Context, keyword string) ([]source.Record, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("serpapi: api key not configured")
	}
	if keyword == "" {
		return nil, fmt.Errorf("serpapi: keyword cannot be empty")
	}

	params := url.Values{}
	params.Set("engine", "google_jobs")
	params.Set("q", keyword)
	params.Set("api_key", s.apiKey)
	params.Set("google_domain", s.googleDomain)
	params.Set("gl", s.country)
	params.Set("hl", s.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi: unexpected status %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("serpapi: decode response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("serpapi: %s", resp.Error)
	}

	records := make([]source.Record, 0, len(resp.JobsResults))
	for _, jr := range resp.JobsResults {
		records = append(records, s.parseJob(jr))
	}

	slog.Info("retrieved serpapi results", "keyword", keyword, "count", len(records))
	return records, nil
}

func (s *Source) parseJob(jr jobResult) source.Record {
	description := buildDescription(jr.Description, jr.JobHighlights)
	fullText := description + " " + jr.Title + " " + highlightText(jr.JobHighlights)

	return source.Record{
		Title:           jr.Title,
		Company:         jr.CompanyName,
		Location:        jr.Location,
		Description:     description,
		URL:             jobURL(jr),
		Source:          sourceName,
		PostedAt:        parsePostedAt(jr.DetectedExtensions.PostedAt, s.now()),
		DiplomaRequired: extractEducation(fullText),
		YearsExperience: extractExperience(fullText),
		Salary:          salaryText(jr.DetectedExtensions),
	}
}

// jobURL prefers the first apply option, which points at the original
// posting; share_link is only a Google Jobs permalink.
func jobURL(jr jobResult) string {
	if len(jr.ApplyOptions) > 0 && jr.ApplyOptions[0].Link != "" {
		return jr.ApplyOptions[0].Link
	}
	return jr.ShareLink
}

func salaryText(ext detectedExtensions) string {
	if ext.Salary != "" {
		return ext.Salary
	}
	return ext.ScheduleType
}

func buildDescription(description string, highlights []jobHighlight) string {
	var b strings.Builder
	b.WriteString(description)

	sections := highlights
	if len(sections) > maxHighlightSections {
		sections = sections[:maxHighlightSections]
	}
	for _, h := range sections {
		if len(h.Items) == 0 {
			continue
		}
		items := h.Items
		if len(items) > maxHighlightItems {
			items = items[:maxHighlightItems]
		}
		b.WriteString("\n\n")
		b.WriteString(h.Title)
		b.WriteString(":\n")
		for _, item := range items {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func highlightText(highlights []jobHighlight) string {
	var parts []string
	for _, h := range highlights {
		parts = append(parts, h.Title)
		parts = append(parts, h.Items...)
	}
	return strings.Join(parts, " ")
}

var educationPatterns = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`phd|ph\.d\.|doctorate|doctoral`), "PhD/Doctorate"},
	{regexp.MustCompile(`master'?s?\b|\bmsc\b|m\.s\.|graduate degree`), "Master's Degree"},
	{regexp.MustCompile(`bachelor'?s?\b|b\.s\.|b\.a\.|undergraduate degree|college degree`), "Bachelor's Degree"},
	{regexp.MustCompile(`associate'?s?\b|a\.a\.|a\.s\.`), "Associate's Degree"},
	{regexp.MustCompile(`high school|secondary school|diploma|\bged\b`), "High School Diploma"},
}

// extractEducation returns the highest education level mentioned in the text,
// or empty when none is found.
func extractEducation(text string) string {
	lower := strings.ToLower(text)
	for _, p := range educationPatterns {
		if p.re.MatchString(lower) {
			return p.label
		}
	}
	return ""
}

var (
	experienceRangeRe  = regexp.MustCompile(`(\d+)\+?\s*(?:to|-|or)\s*(\d+)\+?\s*years?`)
	experienceSingleRe = regexp.MustCompile(`(?:minimum of\s+|at least\s+)?(\d+)\+?\s*years?`)
)

// extractExperience returns a normalized years-of-experience requirement
// such as "3-5 years" or "3+ years", or empty when none is found.
func extractExperience(text string) string {
	lower := strings.ToLower(text)
	if m := experienceRangeRe.FindStringSubmatch(lower); m != nil {
		return m[1] + "-" + m[2] + " years"
	}
	if m := experienceSingleRe.FindStringSubmatch(lower); m != nil {
		return m[1] + "+ years"
	}
	return ""
}

var relativeAgeRe = regexp.MustCompile(`(\d+)\s*(hour|day|week|month)s?\s*ago`)

// parsePostedAt handles both absolute dates ("2024-01-15") and the relative
// forms Google Jobs emits ("2 days ago", "Posted today"). Returns the zero
// time when the value cannot be interpreted.
func parsePostedAt(postedAt string, now time.Time) time.Time {
	if postedAt == "" {
		return time.Time{}
	}

	if t, err := time.Parse("2006-01-02", postedAt); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, postedAt); err == nil {
		return t
	}

	lower := strings.ToLower(postedAt)
	switch {
	case strings.Contains(lower, "today") || strings.Contains(lower, "just now"):
		return now
	case strings.Contains(lower, "yesterday"):
		return now.AddDate(0, 0, -1)
	}

	m := relativeAgeRe.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}
	}
	switch m[2] {
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour)
	case "day":
		return now.AddDate(0, 0, -n)
	case "week":
		return now.AddDate(0, 0, -7*n)
	case "month":
		return now.AddDate(0, 0, -30*n)
	}
	return time.Time{}
}
