package httpapi

import (
	"net/http"
	"strings"

	"vibebiz.dev/internal/audit"
	"vibebiz.dev/internal/auth"
	"vibebiz.dev/internal/docs"
)

type createDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (a *API) handleDocuments(w http.ResponseWriter, r *http.Request) {
	tc, _ := auth.TenantFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		list, err := a.docs.ListDocuments(r.Context(), tc.OrganizationID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if list == nil {
			list = []docs.Document{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": list})

	case http.MethodPost:
		var req createDocumentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		doc, err := a.docs.CreateDocument(r.Context(), tc.OrganizationID, tc.UserID, req.Title, req.Content)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.auditor.Record(r.Context(), audit.Entry{
			OrganizationID: tc.OrganizationID,
			UserID:         tc.UserID,
			Action:         "document.created",
			ResourceType:   "document",
			ResourceID:     doc.ID,
			IPAddress:      clientIP(r),
			UserAgent:      r.UserAgent(),
		})
		writeJSON(w, http.StatusCreated, map[string]any{"document": doc})

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleDocumentByID(w http.ResponseWriter, r *http.Request) {
	docID := pathSuffix(r, "/v1/documents/")
	if docID == "" || strings.Contains(docID, "/") {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tc, _ := auth.TenantFromContext(r.Context())
	doc, err := a.docs.GetDocument(r.Context(), tc.OrganizationID, docID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tc, _ := auth.TenantFromContext(r.Context())
	dash, err := a.docs.BuildDashboard(r.Context(), tc.OrganizationID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

type createReportRequest struct {
	Name string `json:"name"`
}

func (a *API) handleReports(w http.ResponseWriter, r *http.Request) {
	tc, _ := auth.TenantFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		list, err := a.docs.ListReports(r.Context(), tc.OrganizationID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if list == nil {
			list = []docs.Report{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": list})

	case http.MethodPost:
		var req createReportRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		rep, err := a.docs.CreateReport(r.Context(), tc.OrganizationID, req.Name)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.auditor.Record(r.Context(), audit.Entry{
			OrganizationID: tc.OrganizationID,
			UserID:         tc.UserID,
			Action:         "report.created",
			ResourceType:   "report",
			ResourceID:     rep.ID,
			IPAddress:      clientIP(r),
			UserAgent:      r.UserAgent(),
		})
		writeJSON(w, http.StatusCreated, map[string]any{"report": rep})

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleReportByID(w http.ResponseWriter, r *http.Request) {
	reportID := pathSuffix(r, "/v1/reports/")
	if reportID == "" || strings.Contains(reportID, "/") {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tc, _ := auth.TenantFromContext(r.Context())
	rep, err := a.docs.GetReport(r.Context(), tc.OrganizationID, reportID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": rep})
}
