package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func record(t *testing.T, write func(c echo.Context) error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := write(e.NewContext(req, rec)); err != nil {
		t.Fatalf("write: %v", err)
	}
	return rec
}

// The transport status must match the envelope's Status field; callers such
// as webhook providers retry off the wire code alone.
func TestErrorHelpersWriteTransportStatus(t *testing.T) {
	cases := []struct {
		name  string
		write func(c echo.Context) error
		want  int
	}{
		{"success", func(c echo.Context) error { return SuccessResponse(c, "ok") }, http.StatusOK},
		{"bad request", func(c echo.Context) error { return BadRequestResponse(c, "nope") }, http.StatusBadRequest},
		{"unauthorized", func(c echo.Context) error { return UnauthorizedResponse(c, "nope") }, http.StatusUnauthorized},
		{"rate limited", func(c echo.Context) error { return TooManyRequestsResponse(c, "slow down") }, http.StatusTooManyRequests},
		{"internal", InternalServerErrorResponse, http.StatusInternalServerError},
		{"app error", func(c echo.Context) error {
			return AppErrorResponse(c, NewAppError("no_providers", "", "none eligible", http.StatusServiceUnavailable))
		}, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := record(t, tc.write)
			if rec.Code != tc.want {
				t.Fatalf("transport status = %d, want %d", rec.Code, tc.want)
			}
			var envelope APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("envelope: %v", err)
			}
			if envelope.Status != tc.want {
				t.Fatalf("envelope status = %d, want %d", envelope.Status, tc.want)
			}
		})
	}
}
