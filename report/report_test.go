package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTMLPostsPage(t *testing.T) {
	var fields map[string][]string
	var html string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		fields = r.MultipartForm.Value
		f, _, err := r.FormFile("files")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		html = string(data)
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	pdf, err := NewClient(srv.URL+"/").RenderHTML(context.Background(), "<p>receipt</p>")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf))
	assert.Equal(t, "<p>receipt</p>", html)
	assert.Equal(t, []string{"5.83"}, fields["paperWidth"])
	assert.Equal(t, []string{"true"}, fields["printBackground"])
}

func TestRenderHTMLOmitsZeroPageFields(t *testing.T) {
	var fields map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		fields = r.MultipartForm.Value
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).WithPage(PageOptions{}).RenderHTML(context.Background(), "x")
	require.NoError(t, err)
	assert.NotContains(t, fields, "paperWidth")
}

func TestRenderHTMLFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chromium crashed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RenderHTML(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "chromium crashed")
}

func TestPingRoute(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	r := chi.NewRouter()
	NewHandler(NewClient(srv.URL), nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	healthy = false
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
