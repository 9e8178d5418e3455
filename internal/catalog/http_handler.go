package catalog

import (
	"net/http"
	"strconv"

	"shelfscan/internal/httpx"
)

type HTTPHandler struct {
	writer *Writer
}

func NewHTTPHandler(writer *Writer) *HTTPHandler {
	return &HTTPHandler{writer: writer}
}

// Recent handles GET /v1/catalog/recent
// @Summary List recently catalogued books
// @Description Newest catalog entries first, as written by the scan station
// @Tags catalog
// @Produce json
// @Param limit query int false "Number of entries" default(20)
// @Success 200 {object} httpx.SuccessResponse
// @Failure 500 {object} httpx.ErrorResponse
// @Router /v1/catalog/recent [get]
func (h *HTTPHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.writer.Recent(r.Context(), limit)
	if err != nil {
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}

	httpx.JSONSuccess(w, r, entries, map[string]any{
		"count":            len(entries),
		"duplicate_policy": string(h.writer.Policy()),
	})
}
