package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"openvault/internal/models"
	"openvault/internal/store"

	"github.com/go-chi/chi/v5"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPage         = 100_000
)

func (h *Handler) ListAccountTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := h.history.List(r.Context(), userID, chi.URLParam(r, "id"), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if page.Items == nil {
		page.Items = []models.Transaction{}
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) AccountStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	stats, err := h.history.Stats(r.Context(), userID, chi.URLParam(r, "id"), h.now())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	txn, err := h.history.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txn)
}

type filterError string

func (e filterError) Error() string { return string(e) }

// parseFilter reads from/to as RFC 3339 timestamps or plain dates. A plain
// "to" date covers that whole day.
func parseFilter(r *http.Request) (store.TransactionFilter, error) {
	query := r.URL.Query()
	var filter store.TransactionFilter
	if raw := query.Get("from"); raw != "" {
		from, _, err := parseTime(raw)
		if err != nil {
			return filter, filterError("invalid from")
		}
		filter.From = from
	}
	if raw := query.Get("to"); raw != "" {
		to, dateOnly, err := parseTime(raw)
		if err != nil {
			return filter, filterError("invalid to")
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		filter.To = to
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, filterError("to is before from")
	}
	if raw := query.Get("type"); raw != "" {
		txType := models.TransactionType(strings.ToUpper(raw))
		if !txType.Valid() {
			return filter, filterError("invalid type")
		}
		filter.Type = txType
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		return filter, err
	}
	filter.Limit, filter.Offset = limit, offset
	return filter, nil
}

// pageParams maps zero-based page and size onto limit and offset. Pages past
// maxPage are refused so the offset stays well inside an int.
func pageParams(r *http.Request) (int, int, error) {
	size := parseInt(r.URL.Query().Get("size"), defaultPageSize)
	if size > maxPageSize {
		size = maxPageSize
	}
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return size, 0, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page > maxPage {
		return 0, 0, filterError("invalid page")
	}
	if page < 0 {
		page = 0
	}
	return size, page * size, nil
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseTime(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	return t, true, err
}
