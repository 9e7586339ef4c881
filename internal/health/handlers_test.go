package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	dbErr    error
	redisErr error
}

func (s stubChecker) PingDB(context.Context, time.Duration) error    { return s.dbErr }
func (s stubChecker) PingRedis(context.Context, time.Duration) error { return s.redisErr }

func TestLiveAlwaysOK(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Handler{}.Live(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestReadyWithoutCheckerIsUnavailable(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Handler{}.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadyReportsDependencyStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		checker    Checker
		wantStatus int
		wantDB     string
	}{
		{name: "all healthy", checker: stubChecker{}, wantStatus: http.StatusOK, wantDB: "ok"},
		{name: "db down", checker: stubChecker{dbErr: errors.New("connection refused")}, wantStatus: http.StatusServiceUnavailable, wantDB: "connection refused"},
		{name: "redis down", checker: stubChecker{redisErr: errors.New("timeout")}, wantStatus: http.StatusServiceUnavailable, wantDB: "ok"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Handler{Checker: tc.checker}.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			require.Equal(t, tc.wantStatus, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tc.wantDB, body["db"])
		})
	}
}

func TestDepsTreatMissingServicesAsReady(t *testing.T) {
	t.Parallel()

	deps := Deps{}
	require.NoError(t, deps.PingDB(context.Background(), time.Second))
	require.NoError(t, deps.PingRedis(context.Background(), time.Second))
}
