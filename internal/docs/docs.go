// Package docs holds the tenant-scoped demo resources served behind the
// organization gate: documents, a dashboard summary and report listings.
// State is in-memory and partitioned strictly by organization id.
package docs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"vibebiz.dev/internal/auth"
	"vibebiz.dev/internal/ids"
)

// Document is a tenant-owned record. It never leaves its organization.
type Document struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Title          string    `json:"title"`
	Content        string    `json:"content,omitempty"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Report is a generated artifact owned by one organization.
type Report struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Dashboard summarizes an organization's activity.
type Dashboard struct {
	OrganizationID  string     `json:"organization_id"`
	DocumentCount   int        `json:"document_count"`
	ReportCount     int        `json:"report_count"`
	RecentDocuments []Document `json:"recent_documents"`
}

// Service stores documents and reports per organization.
type Service struct {
	mu      sync.Mutex
	now     func() time.Time
	docs    map[string][]Document // orgID -> documents
	reports map[string][]Report   // orgID -> reports
}

// NewService constructs an empty Service.
func NewService() *Service {
	return &Service{
		now:     time.Now,
		docs:    make(map[string][]Document),
		reports: make(map[string][]Report),
	}
}

// CreateDocument stores a document under the organization.
func (s *Service) CreateDocument(ctx context.Context, orgID, userID, title, content string) (Document, error) {
	title = strings.TrimSpace(title)
	if orgID == "" || userID == "" || title == "" {
		return Document{}, auth.ErrInvalidInput
	}
	now := s.now().UTC()
	doc := Document{
		ID:             ids.New(),
		OrganizationID: orgID,
		Title:          title,
		Content:        content,
		CreatedBy:      userID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.mu.Lock()
	s.docs[orgID] = append(s.docs[orgID], doc)
	s.mu.Unlock()
	return doc, nil
}

// ListDocuments returns the organization's documents, oldest first.
func (s *Service) ListDocuments(ctx context.Context, orgID string) ([]Document, error) {
	if orgID == "" {
		return nil, auth.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Document, len(s.docs[orgID]))
	copy(out, s.docs[orgID])
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetDocument returns one document. Documents from other organizations read
// as absent.
func (s *Service) GetDocument(ctx context.Context, orgID, docID string) (Document, error) {
	if orgID == "" || docID == "" {
		return Document{}, auth.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs[orgID] {
		if d.ID == docID {
			return d, nil
		}
	}
	return Document{}, auth.ErrNotFound
}

// CreateReport records a report for the organization.
func (s *Service) CreateReport(ctx context.Context, orgID, name string) (Report, error) {
	name = strings.TrimSpace(name)
	if orgID == "" || name == "" {
		return Report{}, auth.ErrInvalidInput
	}
	rep := Report{
		ID:             ids.New(),
		OrganizationID: orgID,
		Name:           name,
		Status:         "completed",
		CreatedAt:      s.now().UTC(),
	}
	s.mu.Lock()
	s.reports[orgID] = append(s.reports[orgID], rep)
	s.mu.Unlock()
	return rep, nil
}

// ListReports returns the organization's reports, oldest first.
func (s *Service) ListReports(ctx context.Context, orgID string) ([]Report, error) {
	if orgID == "" {
		return nil, auth.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Report, len(s.reports[orgID]))
	copy(out, s.reports[orgID])
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetReport returns one report, scoped to the organization.
func (s *Service) GetReport(ctx context.Context, orgID, reportID string) (Report, error) {
	if orgID == "" || reportID == "" {
		return Report{}, auth.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reports[orgID] {
		if r.ID == reportID {
			return r, nil
		}
	}
	return Report{}, auth.ErrNotFound
}

// BuildDashboard assembles the activity summary for the organization.
func (s *Service) BuildDashboard(ctx context.Context, orgID string) (Dashboard, error) {
	docsList, err := s.ListDocuments(ctx, orgID)
	if err != nil {
		return Dashboard{}, err
	}
	repList, err := s.ListReports(ctx, orgID)
	if err != nil {
		return Dashboard{}, err
	}
	recent := docsList
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	return Dashboard{
		OrganizationID:  orgID,
		DocumentCount:   len(docsList),
		ReportCount:     len(repList),
		RecentDocuments: recent,
	}, nil
}
