package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, inbound string) (header, stored string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		stored = Value(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(headerKey, inbound)
	}
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Header().Get(headerKey), stored
}

func TestMiddlewareKeepsInboundID(t *testing.T) {
	header, stored := roundTrip(t, "gw-7f3a:42")
	assert.Equal(t, "gw-7f3a:42", header)
	assert.Equal(t, header, stored)
}

func TestMiddlewareMintsULID(t *testing.T) {
	for _, inbound := range []string{"", "bad id\r\nX-Injected: 1", strings.Repeat("a", maxLength+1)} {
		header, stored := roundTrip(t, inbound)
		_, err := ulid.ParseStrict(header)
		require.NoError(t, err, "inbound %q", inbound)
		assert.Equal(t, header, stored)
	}
}

func TestValueWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, Value(c))
}
