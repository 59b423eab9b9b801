package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func request(r *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/x", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if method == http.MethodOptions {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowedOrigin(t *testing.T) {
	r := newRouter("https://app.example/")

	w := request(r, http.MethodGet, "https://app.example")
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = request(r, http.MethodGet, "https://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSSubdomainPattern(t *testing.T) {
	r := newRouter("https://*.tutorhub.app")

	assert.Equal(t, "https://staging.tutorhub.app", request(r, http.MethodGet, "https://staging.tutorhub.app").Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, request(r, http.MethodGet, "http://staging.tutorhub.app").Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, request(r, http.MethodGet, "https://eviltutorhub.app").Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSOpenPolicyOmitsCredentials(t *testing.T) {
	r := newRouter()

	w := request(r, http.MethodGet, "https://anywhere.example")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter("https://app.example")

	w := request(r, http.MethodOptions, "https://app.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Last-Event-ID")
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
}
