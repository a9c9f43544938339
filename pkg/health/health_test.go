package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dpchat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChecker() *Checker {
	return NewChecker(logger.New(logger.Config{Output: io.Discard}), time.Minute)
}

func serve(c *Checker) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health/details", c.Handler())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health/details", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestCheckerHealthy(t *testing.T) {
	c := newChecker()
	c.RegisterDatabaseCheck(func(context.Context) error { return nil })
	c.RunChecks(context.Background())

	assert.True(t, c.IsSystemHealthy())

	w := serve(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status     string               `json:"status"`
		Components map[string]Component `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, StatusUp, body.Components["database"].Status)
}

func TestCheckerDatabaseDown(t *testing.T) {
	c := newChecker()
	c.RegisterDatabaseCheck(func(context.Context) error { return errors.New("no reachable servers") })
	c.RunChecks(context.Background())

	assert.False(t, c.IsSystemHealthy())
	assert.Equal(t, "no reachable servers", c.GetStatus()["database"].Error)
	assert.Equal(t, http.StatusServiceUnavailable, serve(c).Code)
}

func TestCheckerCacheDownIsNotCritical(t *testing.T) {
	c := newChecker()
	c.RegisterDatabaseCheck(func(context.Context) error { return nil })
	c.RegisterCacheCheck(func(context.Context) error { return errors.New("connection refused") })
	c.RunChecks(context.Background())

	assert.True(t, c.IsSystemHealthy())
	assert.Equal(t, StatusDegraded, c.GetStatus()["cache"].Status)
}

func TestCheckerBreakerState(t *testing.T) {
	c := newChecker()
	state := "closed"
	c.RegisterBreakerCheck("mongo-writes", func() map[string]any {
		return map[string]any{"state": state, "total_requests": uint64(7), "total_failures": uint64(5), "rejected_requests": uint64(2)}
	})

	c.RunChecks(context.Background())
	assert.Equal(t, StatusUp, c.GetStatus()["mongo-writes"].Status)

	state = "open"
	c.RunChecks(context.Background())
	component := c.GetStatus()["mongo-writes"]
	assert.Equal(t, StatusDegraded, component.Status)
	assert.Equal(t, "state=open requests=7 failures=5 rejected=2", component.Description)
	assert.True(t, c.IsSystemHealthy())
}

func TestCheckerStartStops(t *testing.T) {
	c := newChecker()
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	assert.Eventually(t, func() bool {
		return !c.GetStatus()["self"].LastChecked.IsZero()
	}, time.Second, 5*time.Millisecond)
	cancel()
}
