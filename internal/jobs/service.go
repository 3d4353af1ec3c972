// Package jobs is the thin client for the job service: search,
// pagination and recruiter mutations. Results are caches; callers
// refetch after any mutation.
package jobs

import (
	"context"
	"net/url"
	"strconv"

	"github.com/recruitport/recruitport-go/internal/gateway"
	"github.com/recruitport/recruitport-go/internal/model"
)

// DefaultLimit is the page size used when the caller does not set one.
// The gateway exposes no total count, so paging is offset-driven only.
const DefaultLimit = 10

// SearchParams narrows and pages a job listing.
type SearchParams struct {
	Query  string
	Limit  int
	Offset int
}

// Service calls the job endpoints through the request gateway.
type Service struct {
	gw *gateway.Client
}

// NewService creates a job Service.
func NewService(gw *gateway.Client) *Service {
	return &Service{gw: gw}
}

// Search lists jobs matching the params.
func (s *Service) Search(ctx context.Context, p SearchParams) ([]model.Job, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(p.Offset)},
	}
	if p.Query != "" {
		q.Set("q", p.Query)
	}

	var jobs []model.Job
	if err := s.gw.GetJSON(ctx, "/jobs", q, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Get fetches a single job by ID.
func (s *Service) Get(ctx context.Context, id string) (model.Job, error) {
	var job model.Job
	if err := s.gw.GetJSON(ctx, "/jobs/"+id, nil, &job); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

// Create posts a new job. Recruiter only; the gateway enforces the role.
func (s *Service) Create(ctx context.Context, req model.JobCreate) (model.Job, error) {
	var job model.Job
	if err := s.gw.PostJSON(ctx, "/jobs", req, &job); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

// Delete removes a job posting.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.gw.Delete(ctx, "/jobs/"+id)
}
