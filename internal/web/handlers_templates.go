package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/catalog-import/internal/core"
)

type templateRequest struct {
	ElementType string               `json:"elementType" validate:"required"`
	Name        string               `json:"name" validate:"required,max=200"`
	Mappings    []core.ColumnMapping `json:"mappings"`
	CSVHeaders  []string             `json:"csvHeaders"`
}

type updateTemplateRequest struct {
	Name       string               `json:"name" validate:"required,max=200"`
	Mappings   []core.ColumnMapping `json:"mappings"`
	CSVHeaders []string             `json:"csvHeaders"`
}

type matchTemplatesRequest struct {
	ElementType string   `json:"elementType" validate:"required"`
	Headers     []string `json:"headers" validate:"required,min=1"`
}

// handleListTemplates returns the templates of ?elementType=.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	elementType := r.URL.Query().Get("elementType")
	if elementType == "" {
		s.respondError(w, r, fmt.Errorf("%w: elementType query parameter is required", errBadRequest))
		return
	}

	templates, err := s.service.ListTemplates(r.Context(), elementType)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, templates)
}

func (s *Server) handleMatchTemplates(w http.ResponseWriter, r *http.Request) {
	var req matchTemplatesRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	matches, err := s.service.MatchTemplates(r.Context(), req.ElementType, req.Headers)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, matches)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.GetTemplate(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, t)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	t, err := s.service.CreateTemplate(ctx, req.ElementType, req.Name, req.Mappings, req.CSVHeaders)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req updateTemplateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	t, err := s.service.UpdateTemplate(ctx, chi.URLParam(r, "templateID"), req.Name, req.Mappings, req.CSVHeaders)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, t)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.service.DeleteTemplate(ctx, chi.URLParam(r, "templateID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
