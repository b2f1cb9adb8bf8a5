package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/catalog-import/internal/core"
)

func (s *Server) handleListCatalogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.ListCatalogs())
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.Catalog(chi.URLParam(r, "elementType"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, c)
}

// ParseResponse is the parse result plus, when an element type was given,
// suggested mappings and matching saved templates.
type ParseResponse struct {
	FileName  string               `json:"fileName,omitempty"`
	Parse     core.ParseResult     `json:"parse"`
	Mappings  []core.ColumnMapping `json:"mappings,omitempty"`
	Templates []core.TemplateMatch `json:"templates,omitempty"`
}

// handleParse tokenizes an uploaded file. A parse failure is a 400 whose
// details list the parser errors.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	fileName, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res := s.service.ParseFile(fileName, data)
	if res.Failed() {
		s.respondErrorDetails(w, r, res.Err(), res.Errors)
		return
	}

	out := ParseResponse{FileName: fileName, Parse: res}
	if elementType := r.URL.Query().Get("elementType"); elementType != "" {
		if out.Mappings, err = s.service.SuggestMappings(elementType, res.Headers); err != nil {
			s.respondError(w, r, err)
			return
		}
		if out.Templates, err = s.service.MatchTemplates(r.Context(), elementType, res.Headers); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	writeJSON(w, out)
}

type validateMappingsRequest struct {
	ElementType string               `json:"elementType" validate:"required"`
	Mappings    []core.ColumnMapping `json:"mappings" validate:"required"`
}

func (s *Server) handleValidateMappings(w http.ResponseWriter, r *http.Request) {
	var req validateMappingsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.ValidateMappings(req.ElementType, req.Mappings)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, res)
}

type validateRowsRequest struct {
	ElementType string               `json:"elementType" validate:"required"`
	Rows        []core.RawRow        `json:"rows" validate:"required"`
	Mappings    []core.ColumnMapping `json:"mappings" validate:"required"`
}

// handleValidateRows maps and validates parsed rows. Unusable mappings are
// rejected with the mapping report as details.
func (s *Server) handleValidateRows(w http.ResponseWriter, r *http.Request) {
	var req validateRowsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	mv, err := s.service.ValidateMappings(req.ElementType, req.Mappings)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := mv.Err(); err != nil {
		s.respondErrorDetails(w, r, badRequest(err), mv)
		return
	}

	res, err := s.service.ValidateRows(r.Context(), req.ElementType, req.Rows, req.Mappings)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, res)
}

type detectDuplicatesRequest struct {
	ElementType string              `json:"elementType" validate:"required"`
	Rows        []core.SubmittedRow `json:"rows" validate:"required,dive"`
}

// DuplicatesResponse is the detection result together with the records it
// was computed from, so the client can show why a row had no lookup.
type DuplicatesResponse struct {
	core.DetectionResult
	Invalid []core.ImportRecord `json:"invalid"`
}

// handleDetectDuplicates re-validates the submitted mapped rows and looks
// up existing elements for the valid ones.
func (s *Server) handleDetectDuplicates(w http.ResponseWriter, r *http.Request) {
	var req detectDuplicatesRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	records, err := s.service.RecordsFromSubmitted(req.ElementType, req.Rows)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	batch := core.ValidateBatch(records)

	res, err := s.service.DetectDuplicates(r.Context(), req.ElementType, batch.ValidRecords)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, DuplicatesResponse{DetectionResult: res, Invalid: batch.InvalidRecords})
}

type resolveStrategiesRequest struct {
	Matches   []core.DuplicateMatch          `json:"matches" validate:"required"`
	Overrides map[int]core.DuplicateStrategy `json:"overrides"`
}

func (s *Server) handleResolveStrategies(w http.ResponseWriter, r *http.Request) {
	var req resolveStrategiesRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	matches, err := s.service.ResolveStrategies(req.Matches, req.Overrides)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"matches": matches})
}

func (s *Server) handleGetElement(w http.ResponseWriter, r *http.Request) {
	el, err := s.service.GetElement(r.Context(), chi.URLParam(r, "elementID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, el)
}
