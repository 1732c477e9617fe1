// Package testutil provides shared test helpers.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/motion.fusion/internal/monitoring"
)

// LocalAddr is the RemoteAddr of requests built by NewLocalRequest.
const LocalAddr = "127.0.0.1:12345"

// MuteLogs silences the diagnostic logger for the rest of the test.
func MuteLogs(tb testing.TB) {
	tb.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	tb.Cleanup(func() { monitoring.Logf = original })
}

// NewLocalRequest builds a request from the loopback address, which the
// /debug/ routes require.
func NewLocalRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = LocalAddr
	return req
}

// Serve runs req through h and returns the recorded response.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// AssertStatusCode checks that the response status code matches want,
// printing the body on mismatch.
func AssertStatusCode(tb testing.TB, rec *httptest.ResponseRecorder, want int) {
	tb.Helper()
	if rec.Code != want {
		tb.Errorf("status code = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}
