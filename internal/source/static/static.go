// Package static provides a built-in sample-data source used as the last
// fallback when no network source returns results.
package static

import (
	"context"
	"strings"

	"github.com/mattanmr/job-posting-aggregator/internal/source"
)

const sourceName = "static"

type Source struct {
	records []source.Record
}

func New() *Source {
	return &Source{records: sampleRecords}
}

func (s *Source) Name() string { return sourceName }

// Search matches the keyword case-insensitively against title, description
// and company.
func (s *Source) Search(_ context.Context, keyword string) ([]source.Record, error) {
	q := strings.ToLower(keyword)

	var results []source.Record
	for _, r := range s.records {
		if strings.Contains(strings.ToLower(r.Title), q) ||
			strings.Contains(strings.ToLower(r.Description), q) ||
			strings.Contains(strings.ToLower(r.Company), q) {
			r.Source = sourceName
			results = append(results, r)
		}
	}
	return results, nil
}

var sampleRecords = []source.Record{
	{
		Title:       "Senior Python Developer",
		Company:     "Tech Corp",
		Location:    "San Francisco, CA",
		Description: "We are looking for an experienced Python developer to join our team. Requirements: 5+ years of experience with Python, FastAPI, and cloud technologies.",
		URL:         "https://example.com/job/1",
	},
	{
		Title:       "Frontend React Engineer",
		Company:     "StartUp Inc",
		Location:    "New York, NY",
		Description: "Seeking a talented React developer for our innovative web platform. Experience with TypeScript and Vite is a plus.",
		URL:         "https://example.com/job/2",
	},
	{
		Title:       "Full Stack Developer",
		Company:     "Enterprise Solutions",
		Location:    "Remote",
		Description: "Join our team as a Full Stack Developer. Work with Python backend and React frontend. Must have 3+ years of experience.",
		URL:         "https://example.com/job/3",
	},
	{
		Title:       "DevOps Engineer",
		Company:     "Cloud Systems Ltd",
		Location:    "Austin, TX",
		Description: "Looking for a DevOps Engineer experienced with Docker, Kubernetes, and CI/CD pipelines.",
		URL:         "https://example.com/job/4",
	},
	{
		Title:       "Junior Python Developer",
		Company:     "Learning Labs",
		Location:    "Boston, MA",
		Description: "Great opportunity for junior developers to grow. We provide mentorship and training in Python web development.",
		URL:         "https://example.com/job/5",
	},
}
