// Package applications is the thin client for application submission
// and review.
package applications

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/recruitport/recruitport-go/internal/gateway"
	"github.com/recruitport/recruitport-go/internal/model"
)

// MaxResumeSize is the advisory client-side cap on resume uploads.
// The gateway is the real enforcer.
const MaxResumeSize = 10 << 20

var (
	ErrResumeTooLarge = errors.New("resume exceeds the 10MB limit")
	ErrResumeNotPDF   = errors.New("resume must be a PDF file")
	ErrInvalidStatus  = errors.New("unknown application status")
)

// Service calls the application endpoints through the request gateway.
type Service struct {
	gw *gateway.Client
}

// NewService creates an application Service.
func NewService(gw *gateway.Client) *Service {
	return &Service{gw: gw}
}

// Submit uploads a resume for a job. size is the advisory length of
// the file; pass a negative value when unknown. Checks here mirror the
// upload form's accept filter and are advisory only.
func (s *Service) Submit(ctx context.Context, jobID, filename string, resume io.Reader, size int64) (model.Application, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return model.Application{}, ErrResumeNotPDF
	}
	if size > MaxResumeSize {
		return model.Application{}, ErrResumeTooLarge
	}

	var app model.Application
	err := s.gw.PostMultipart(ctx, "/applications",
		map[string]string{"job_id": jobID}, "file", filename, resume, &app)
	if err != nil {
		return model.Application{}, err
	}
	return app, nil
}

// Mine lists the caller's own applications.
func (s *Service) Mine(ctx context.Context) ([]model.Application, error) {
	var apps []model.Application
	if err := s.gw.GetJSON(ctx, "/applications/me", nil, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// ForJob lists applications submitted to one job, for applicant review.
func (s *Service) ForJob(ctx context.Context, jobID string) ([]model.Application, error) {
	q := url.Values{"job_id": {jobID}}
	var apps []model.Application
	if err := s.gw.GetJSON(ctx, "/applications", q, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// SetStatus moves an application through the review pipeline.
func (s *Service) SetStatus(ctx context.Context, id string, status model.ApplicationStatus) (model.Application, error) {
	if !status.Valid() {
		return model.Application{}, ErrInvalidStatus
	}

	body := map[string]model.ApplicationStatus{"status": status}
	var app model.Application
	if err := s.gw.PatchJSON(ctx, "/applications/"+id, body, &app); err != nil {
		return model.Application{}, err
	}
	return app, nil
}

// Resume downloads the stored resume binary and its content type.
func (s *Service) Resume(ctx context.Context, id string) ([]byte, string, error) {
	return s.gw.GetBinary(ctx, "/applications/"+id+"/resume")
}
