package control

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsync/reelsync/internal/coordinator"
	"github.com/reelsync/reelsync/internal/protocol"
)

type recordingController struct {
	actions []string
	status  coordinator.Status
}

func (c *recordingController) Play()  { c.actions = append(c.actions, "play") }
func (c *recordingController) Pause() { c.actions = append(c.actions, "pause") }
func (c *recordingController) Seek(target float64) {
	c.actions = append(c.actions, "seek")
	c.status.Playhead = target
}
func (c *recordingController) SwitchAudio(track protocol.AudioTrack) {
	c.actions = append(c.actions, "audio:"+string(track))
}
func (c *recordingController) CurrentStatus() coordinator.Status { return c.status }

func newTestMux(controller *recordingController) *http.ServeMux {
	mux := http.NewServeMux()
	cfg := protocol.StreamConfig{
		StreamID:       "hunt-a",
		StartTimestamp: "2024-01-15T20:00:00",
		DurationHint:   3600,
	}
	NewHandler(controller, cfg).RegisterRoutes(mux)
	return mux
}

func TestStatusEndpoint(t *testing.T) {
	controller := &recordingController{status: coordinator.Status{
		State:     coordinator.StatePlaying,
		Playhead:  42.5,
		Connected: true,
		Role:      "host",
	}}
	mux := newTestMux(controller)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"playing"`)
	assert.Contains(t, rec.Body.String(), `"playhead":42.5`)
	assert.Contains(t, rec.Body.String(), `"connected":true`)
}

func TestConfigEndpoint(t *testing.T) {
	mux := newTestMux(&recordingController{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"streamId":"hunt-a"`)
	assert.Contains(t, rec.Body.String(), `"startTimestamp":"2024-01-15T20:00:00"`)
}

func TestIntentEndpoints(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		status  int
		actions []string
	}{
		{"play", "/api/intent/play", "", http.StatusAccepted, []string{"play"}},
		{"pause", "/api/intent/pause", "", http.StatusAccepted, []string{"pause"}},
		{"seek", "/api/intent/seek", `{"position":120.5}`, http.StatusAccepted, []string{"seek"}},
		{"seek negative", "/api/intent/seek", `{"position":-5}`, http.StatusBadRequest, nil},
		{"seek malformed", "/api/intent/seek", `{`, http.StatusBadRequest, nil},
		{"audio", "/api/intent/audio", `{"track":"remote"}`, http.StatusAccepted, []string{"audio:remote"}},
		{"audio unknown track", "/api/intent/audio", `{"track":"both"}`, http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller := &recordingController{}
			mux := newTestMux(controller)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.actions, controller.actions)
		})
	}
}

func TestIntentEndpointsRejectGet(t *testing.T) {
	controller := &recordingController{}
	mux := newTestMux(controller)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/intent/play", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, controller.actions)
}
