package web

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/catalog-import/internal/core"
)

type createBatchRequest struct {
	ID           string `json:"id" validate:"required,max=128"`
	FileName     string `json:"fileName" validate:"max=255"`
	UserID       string `json:"userId" validate:"max=128"`
	TotalRecords int    `json:"totalRecords" validate:"min=0"`
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	b, err := s.service.CreateBatch(ctx, core.NewBatch{
		ID:           req.ID,
		FileName:     req.FileName,
		UserID:       req.UserID,
		TotalRecords: req.TotalRecords,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, b)
}

type executeBatchRequest struct {
	ElementType string                `json:"elementType" validate:"required"`
	Rows        []core.SubmittedRow   `json:"rows" validate:"required,dive"`
	Matches     []core.DuplicateMatch `json:"matches"`
}

// handleExecuteBatch runs the submitted rows as the given batch and returns
// the finished batch. A second execute of the same batch is a 409.
func (s *Server) handleExecuteBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	var req executeBatchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	b, err := s.service.ExecuteSubmitted(ctx, req.ElementType, batchID, req.Rows, req.Matches)
	if err != nil && b.ID == "" {
		s.respondError(w, r, err)
		return
	}
	// A FAILED batch is still a result; the executor has logged the cause.
	writeJSON(w, b)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	b, err := s.service.GetBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, b)
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ListBatchesPage(r.Context(),
		parseIntParam(r, "page", 1),
		parseIntParam(r, "pageSize", 0),
	)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, page)
}

func (s *Server) handleErrorReportCSV(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	entries, err := s.service.ErrorReport(r.Context(), batchID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := core.WriteErrorReportCSV(&buf, entries); err != nil {
		s.respondError(w, r, err)
		return
	}
	setAttachment(w, "text/csv; charset=utf-8", batchID+"-errors.csv")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleErrorReportXLSX(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	entries, err := s.service.ErrorReport(r.Context(), batchID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := core.WriteErrorReportXLSX(&buf, entries); err != nil {
		s.respondError(w, r, err)
		return
	}
	setAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", batchID+"-errors.xlsx")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExecutionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.ExecutionStatus())
}
