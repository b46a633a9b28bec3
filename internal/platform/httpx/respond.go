// Package httpx shapes the engine's JSON surface. Successful responses are
// plain JSON; failures are RFC 7807 problem documents carrying a stitchline
// problem type URI so clients can branch on the type instead of parsing
// detail strings.
package httpx

import (
	"encoding/json"
	"net/http"
)

// problemTypeBase prefixes every problem type slug. The documents behind the
// URIs live with the API docs.
const problemTypeBase = "https://stitchline.dev/problems/"

// ProblemDetail is an RFC 7807 problem document.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// problemSlugs maps the statuses this API actually answers with onto type
// slugs. Statuses outside the map fall back to about:blank per the RFC.
var problemSlugs = map[int]string{
	http.StatusBadRequest:          "invalid-request",
	http.StatusNotFound:            "not-found",
	http.StatusConflict:            "conflict",
	http.StatusUnprocessableEntity: "refused-conversion",
	http.StatusTooManyRequests:     "rate-limited",
	http.StatusInternalServerError: "internal",
	http.StatusServiceUnavailable:  "catalog-unavailable",
}

// JSON sends data with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC 7807 problem document with its registered type URI.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	doc := ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	}
	if slug, ok := problemSlugs[status]; ok {
		doc.Type = problemTypeBase + slug
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}

// DecodeJSON decodes the request body into target.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
