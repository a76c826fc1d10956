package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/erazemk/rewear/internal/apperr"
	"github.com/erazemk/rewear/internal/store"
)

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.CodeValidation, "invalid "+name)
	}
	return id, nil
}

// pageParams reads page and limit query parameters. Malformed values fall
// back to the defaults.
func pageParams(r *http.Request) store.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return store.Page{Number: page, Limit: limit}.Normalize()
}
