package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPReader_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != AvailablePath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]AvailableCourse{
			{ID: "late", Title: "Late"},
			{ID: "first", Title: "First", Order: IntPtr(1), Version: "1.0",
				ChaptersContent: []ChapterContent{{ID: "ch1", Title: "Intro", Content: "# Intro"}}},
		})
	}))
	defer srv.Close()

	reader := NewHTTPReader(srv.URL+"/", time.Second)
	courses, err := reader.ListAvailableCourses(context.Background())
	if err != nil {
		t.Fatalf("ListAvailableCourses() failed: %v", err)
	}
	if len(courses) != 2 || courses[0].ID != "first" || courses[1].ID != "late" {
		t.Fatalf("courses = %+v", courses)
	}
	if courses[0].ChaptersContent[0].Content != "# Intro" {
		t.Errorf("chapter content not decoded: %+v", courses[0].ChaptersContent)
	}
}

func TestHTTPReader_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name: "server error with payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error": "content directory unreadable"}`))
			},
			wantMsg: "content directory unreadable",
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			wantMsg: "404",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"not": "an array"}`))
			},
			wantMsg: "decode catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHTTPReader(srv.URL, time.Second).ListAvailableCourses(context.Background())
			if !errors.Is(err, ErrCatalogUnavailable) {
				t.Fatalf("error = %v, want ErrCatalogUnavailable", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestHTTPReader_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPReader(url, time.Second).ListAvailableCourses(context.Background())
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("error = %v, want ErrCatalogUnavailable", err)
	}
}

func TestHTTPReader_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPReader(srv.URL, 5*time.Second).ListAvailableCourses(ctx)
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("error = %v, want ErrCatalogUnavailable", err)
	}
}
