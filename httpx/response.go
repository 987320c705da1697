package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/diewo77/portail-cabinet/i18n"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Meta describes one page of a list endpoint.
type Meta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	Limit    int   `json:"limit"`
	LastPage int   `json:"last_page"`
}

// Page is the {data, meta} envelope returned by list endpoints.
type Page struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

// Error writes an error body localized with the request language.
func Error(w http.ResponseWriter, r *http.Request, status int, code string, details any) {
	lang := i18n.LangFromContext(r.Context())
	JSON(w, status, ErrorResponse{Error: code, Message: i18n.T(lang, code), Details: details})
}

// Paginated writes data with its page metadata.
func Paginated(w http.ResponseWriter, data any, total int64, page, limit int) {
	last := 1
	if limit > 0 && total > 0 {
		last = int((total + int64(limit) - 1) / int64(limit))
	}
	JSON(w, http.StatusOK, Page{Data: data, Meta: Meta{Total: total, Page: page, Limit: limit, LastPage: last}})
}

// Pagination reads page and limit query parameters. limit is capped at 100.
func Pagination(r *http.Request, defaultLimit int) (page, limit, offset int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}

// DecodeJSON decodes the request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// PathID parses the {name} path value as a positive id.
func PathID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
