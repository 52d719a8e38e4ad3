package landing

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/models"
	"github.com/aura-webinar/livestream/internal/registry"
)

var start = time.Date(2025, 5, 12, 14, 30, 0, 0, time.UTC)

func TestCountdownUnitsSumToRemaining(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		left := time.Duration(rng.Int63n(int64(90*24*time.Hour))) + time.Second
		cd := CountdownAt(start, start.Add(-left))
		require.False(t, cd.Finished)
		assert.Equal(t, left.Truncate(time.Second), cd.Remaining())
		assert.Less(t, cd.Hours, int64(24))
		assert.Less(t, cd.Minutes, int64(60))
		assert.Less(t, cd.Seconds, int64(60))
	}
}

func TestCountdownExample(t *testing.T) {
	now := start.Add(-(2*24*time.Hour + 3*time.Hour + 4*time.Minute + 5*time.Second + 900*time.Millisecond))
	assert.Equal(t, Countdown{Days: 2, Hours: 3, Minutes: 4, Seconds: 5}, CountdownAt(start, now))
}

func TestCountdownFinished(t *testing.T) {
	for _, now := range []time.Time{start, start.Add(time.Nanosecond), start.Add(time.Minute)} {
		assert.Equal(t, Countdown{Finished: true}, CountdownAt(start, now))
	}
}

func TestCountdownLastSecondIsNotFinished(t *testing.T) {
	for _, left := range []time.Duration{400 * time.Millisecond, 999 * time.Millisecond, time.Nanosecond} {
		assert.Equal(t, Countdown{}, CountdownAt(start, start.Add(-left)), left)
	}
}

func webinar(stream bool) *models.Webinar {
	w := &models.Webinar{ID: "w1", Name: "Launch", Date: "2025-05-12", Time: "02:30", Period: models.PeriodPM, StreamToken: "tok"}
	if stream {
		w.StreamCallID = "w1"
	}
	return w
}

func TestBuild(t *testing.T) {
	_, err := Build(nil, time.UTC, start)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	before, err := Build(webinar(true), time.UTC, start.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, before.CanRemind)
	assert.False(t, before.CanJoin)
	assert.Empty(t, before.JoinPath)
	assert.Equal(t, start, before.StartsAt)
	assert.Empty(t, before.Webinar.StreamToken)

	almost, err := Build(webinar(true), time.UTC, start.Add(-400*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, almost.Countdown.Finished)
	assert.True(t, almost.CanRemind)
	assert.False(t, almost.CanJoin)
	assert.Empty(t, almost.JoinPath)

	after, err := Build(webinar(true), time.UTC, start.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, after.CanRemind)
	assert.True(t, after.CanJoin)
	assert.Equal(t, "/webinar/w1/live", after.JoinPath)

	noStream, err := Build(webinar(false), time.UTC, start.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, noStream.Countdown.Finished)
	assert.False(t, noStream.CanJoin)
	assert.Empty(t, noStream.JoinPath)
}

func TestTickStops(t *testing.T) {
	calls := 0
	Tick(context.Background(), time.Millisecond, func(time.Time) bool {
		calls++
		return calls < 3
	})
	assert.Equal(t, 3, calls)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Tick(ctx, time.Hour, func(time.Time) bool { return true })
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Tick did not return after cancel")
	}
}

func newRouter(t *testing.T, now time.Time, records ...*models.Webinar) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := registry.NewMemoryRepository()
	for _, w := range records {
		require.NoError(t, reg.Put(context.Background(), w))
	}
	svc := NewService(reg, time.UTC)
	svc.now = func() time.Time { return now }
	h := NewHandler(svc, nil)
	h.interval = time.Millisecond
	r := gin.New()
	r.GET("/webinars/:id/landing", h.Get)
	r.GET("/webinars/:id/countdown", h.Countdown)
	return r
}

func TestLandingEndpoint(t *testing.T) {
	r := newRouter(t, start.Add(-90*time.Second), webinar(true))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webinars/w1/landing", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data Page `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, Countdown{Minutes: 1, Seconds: 30}, env.Data.Countdown)
	assert.True(t, env.Data.CanRemind)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webinars/missing/landing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "webinar not found")
}

func TestCountdownStreamEndsWhenFinished(t *testing.T) {
	r := newRouter(t, start.Add(time.Minute), webinar(true))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webinars/w1/countdown", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, 1, strings.Count(body, "event:countdown"))
	assert.Contains(t, body, "event:finished")
	assert.Contains(t, body, `"joinPath":"/webinar/w1/live"`)
}
