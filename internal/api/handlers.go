package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cern-fcc/datacatalog/internal/apperr"
	"github.com/cern-fcc/datacatalog/internal/ingest"
	"github.com/cern-fcc/datacatalog/internal/navigation"
	"github.com/cern-fcc/datacatalog/internal/search"
)

// handleSearch implements GET /api/search, the query-language endpoint of
// spec.md §6.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := search.Options{
		Query:     q.Get("q"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	var err error
	if opts.Limit, err = intParam(q, "limit", 0); err != nil {
		writeError(w, apperr.Validation("limit must be an integer"))
		return
	}
	if opts.Offset, err = intParam(q, "offset", 0); err != nil {
		writeError(w, apperr.Validation("offset must be an integer"))
		return
	}

	result, err := s.Search.Execute(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total": result.Total,
		"items": result.Items,
	})
}

// handleDropdown implements GET /api/navigation/{entity}/options, spec.md
// §6's dropdown endpoint.
func (s *Server) handleDropdown(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	filter, err := parseJSONFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, apperr.Validation("filter must be a JSON object of string values"))
		return
	}

	opts, err := s.Navigation.Dropdown(r.Context(), entity, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if opts == nil {
		opts = []navigation.Option{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": opts})
}

// handleGenericSearch implements GET /api/navigation/search, the
// schema-agnostic filter+free-text path of SPEC_FULL.md §4.12.
func (s *Server) handleGenericSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters, err := parseJSONFilter(q.Get("filters"))
	if err != nil {
		writeError(w, apperr.Validation("filters must be a JSON object of string values"))
		return
	}

	limit, err := intParam(q, "limit", 25)
	if err != nil {
		writeError(w, apperr.Validation("limit must be an integer"))
		return
	}
	page, err := intParam(q, "page", 1)
	if err != nil || page < 1 {
		writeError(w, apperr.Validation("page must be a positive integer"))
		return
	}

	total, items, err := s.Navigation.GenericSearch(r.Context(), navigation.GenericSearchOptions{
		Filters: filters,
		Search:  q.Get("search"),
		Limit:   limit,
		Offset:  (page - 1) * limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total": total,
		"items": items,
		"page":  page,
	})
}

// handleSchema implements GET /api/schema, the frontend-bootstrap contract
// of spec.md §6.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	rec := s.Inspector.Cached()
	if rec == nil {
		writeError(w, apperr.Configuration("schema has not been analyzed yet", nil))
		return
	}

	tables := []string{rec.MainTable}
	foreignKeys := make([]string, 0, len(rec.NavigationOrder))
	navigationTables := make(map[string]any, len(rec.NavigationOrder))
	navigationMenu := make(map[string]any, len(rec.NavigationOrder))
	for i, key := range rec.NavigationOrder {
		ent := rec.Navigation[key]
		tables = append(tables, ent.TableName)
		foreignKeys = append(foreignKeys, key+"_id")
		navigationTables[key] = map[string]any{
			"tableName":  ent.TableName,
			"primaryKey": ent.PrimaryKey,
			"nameColumn": ent.NameColumn,
			"columns":    ent.Columns,
		}
		navigationMenu[key] = map[string]any{
			"columnName": key + "_id",
			"orderIndex": i,
		}
	}

	columns := make([]string, len(rec.MainColumns))
	for i, c := range rec.MainColumns {
		columns[i] = c.Name
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tables":      tables,
		"main_table":  rec.MainTable,
		"foreign_keys": foreignKeys,
		"navigation_config": map[string]any{
			"order": rec.NavigationOrder,
			"menu":  navigationMenu,
		},
		"mainTableSchema": map[string]any{
			"tableName":  rec.MainTable,
			"primaryKey": rec.MainPrimaryKey,
			"nameColumn": "name",
			"columns":    columns,
		},
		"navigationTables":  navigationTables,
		"navigationOrder":   rec.NavigationOrder,
		"appTitle":          s.Config.Application.Title,
		"searchPlaceholder": s.Config.Application.SearchPlaceholder,
	})
}

const maxIngestBody = 64 << 20 // 64MiB, matching a single FCC dictionary upload

// handleIngest implements POST /api/ingest: a multipart file upload whose
// single file part is the `{ processes: [...] }` JSON collection of
// spec.md §6, gated upstream by auth.RequireRole.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBody)
	if err := r.ParseMultipartForm(maxIngestBody); err != nil {
		writeError(w, apperr.Validation("failed to parse upload: "+err.Error()))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperr.Validation("expected a multipart file field named \"file\""))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, apperr.Validation("failed to read uploaded file"))
		return
	}

	var batch ingest.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		writeError(w, apperr.Validation("uploaded file is not valid JSON: "+err.Error()))
		return
	}

	result, err := s.Ingest.Import(r.Context(), batch)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   fmt.Sprintf("imported %d record(s), %d failed", result.Processed, result.Failed),
		"processed": result.Processed,
		"failed":    result.Failed,
		"errors":    result.Errors,
	})
}

// handleDeleteProcess implements DELETE /api/processes/{id}, refusing with
// Conflict when the row is still referenced, per spec.md §3 Lifecycles.
func (s *Server) handleDeleteProcess(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, apperr.Validation("id must be an integer"))
		return
	}

	_, _, err = s.Navigation.DeleteEntitiesByIDs(r.Context(), []int64{id})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("deleted %d", id)})
}

func intParam(q map[string][]string, key string, fallback int) (int, error) {
	v := q[key]
	if len(v) == 0 || v[0] == "" {
		return fallback, nil
	}
	return strconv.Atoi(v[0])
}

func parseJSONFilter(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var filter map[string]string
	if err := json.Unmarshal([]byte(raw), &filter); err != nil {
		return nil, err
	}
	return filter, nil
}
