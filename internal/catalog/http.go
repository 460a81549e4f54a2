package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AvailablePath is the catalog endpoint served by the content server.
const AvailablePath = "/api/courses/available"

// maxErrorBody bounds how much of a failed response is read for the message.
const maxErrorBody = 4 << 10

// HTTPReader fetches the catalog from a content server.
type HTTPReader struct {
	baseURL string
	client  *http.Client
}

// NewHTTPReader creates a reader for the server at baseURL.
//
// The timeout bounds the whole request; zero means 30 seconds.
//
// Example:
//
//	reader := catalog.NewHTTPReader("http://localhost:8080", 10*time.Second)
//	courses, err := reader.ListAvailableCourses(ctx)
func NewHTTPReader(baseURL string, timeout time.Duration) *HTTPReader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPReader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// URL returns the full catalog endpoint.
func (r *HTTPReader) URL() string {
	return r.baseURL + AvailablePath
}

// ListAvailableCourses implements Reader.
func (r *HTTPReader) ListAvailableCourses(ctx context.Context) ([]AvailableCourse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrCatalogUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d: %s",
			ErrCatalogUnavailable, r.URL(), resp.StatusCode, errorMessage(resp.Body))
	}

	var courses []AvailableCourse
	if err := json.NewDecoder(resp.Body).Decode(&courses); err != nil {
		return nil, fmt.Errorf("%w: decode catalog: %w", ErrCatalogUnavailable, err)
	}

	SortCourses(courses)
	return courses, nil
}

// errorMessage extracts {"error": "..."} from a failed response, falling
// back to the raw body.
func errorMessage(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return msg
	}
	return "no error message"
}
