package helpers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetBrowserHeaders(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://www.olx.pl/q-rower/", nil)
	require.NoError(t, err)

	SetBrowserHeaders(req)

	assert.Contains(t, userAgents, req.Header.Get("User-Agent"))
	assert.Contains(t, referers, req.Header.Get("Referer"))
	assert.NotEmpty(t, req.Header.Get("Accept"))
	assert.Contains(t, req.Header.Get("Accept-Language"), "pl-PL")
}

func TestNoRedirectClientReturnsRedirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/target" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/target", http.StatusMovedPermanently)
	}))
	defer server.Close()

	resp, err := NewNoRedirectClient(5 * time.Second).Get(server.URL + "/start")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/target", resp.Header.Get("Location"))
}

func TestDecodeUTF8(t *testing.T) {
	body := []byte("<html><body>Łódź</body></html>")
	decoded, err := DecodeUTF8(body, "text/html; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, body, decoded)

	// "Łódź" in ISO-8859-2
	latin2 := []byte{'<', 'p', '>', 0xA3, 0xF3, 'd', 0xBC, '<', '/', 'p', '>'}
	decoded, err = DecodeUTF8(latin2, "text/html; charset=iso-8859-2")
	require.NoError(t, err)
	assert.Equal(t, "<p>Łódź</p>", string(decoded))
}
