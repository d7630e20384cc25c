package httpx

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/dealer-iam/internal/shared"
)

// ListParams reads page, size, q, sortBy and sortDir from the query string.
// Values are normalised later by the service.
func ListParams(r *http.Request) shared.ListParams {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return shared.ListParams{
		Page:    page,
		Size:    size,
		Query:   q.Get("q"),
		SortBy:  q.Get("sortBy"),
		SortDir: q.Get("sortDir"),
	}
}
