package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chenBenjamin97/shot-analyzer/pkg/config"
	"github.com/chenBenjamin97/shot-analyzer/pkg/emitter"
	"github.com/chenBenjamin97/shot-analyzer/pkg/game"
	"github.com/chenBenjamin97/shot-analyzer/pkg/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv      *Server
	router   *gin.Engine
	source   string
	analyzed chan string
	proceed  chan struct{}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Directory.Source = filepath.Join(dir, "source")
	cfg.Video.ProdFormat = "mp4"
	require.NoError(t, os.Mkdir(cfg.Directory.Source, 0755))

	st, err := store.NewStore(filepath.Join(dir, "shots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	o := game.New(game.DefaultConfig())
	st.Listen(o)
	loop := game.NewLoop(o, 8)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go loop.Run(ctx)

	env := &testEnv{source: cfg.Directory.Source, analyzed: make(chan string, 1), proceed: make(chan struct{})}
	env.srv = NewServer(cfg, loop, st, func(ctx context.Context, videoPath string) error {
		env.analyzed <- videoPath
		<-env.proceed
		return nil
	})
	env.router = env.srv.SetRouter()
	return env
}

func (e *testEnv) request(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, name string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("video", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte("not really a video"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestSessionLifecycle(t *testing.T) {
	e := newTestEnv(t)

	w := e.request(t, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["state"])

	w = e.request(t, http.MethodPost, "/api/session/start", `{"width":1000,"height":800}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DetectingHoop", decode(t, w)["state"])

	w = e.request(t, http.MethodPost, "/api/session/frames", `{"number":1,"events":[
		{"kind":"hoop","rect":{"x":600,"y":200,"w":60,"h":40},"confidence":0.95,"contour":{"x":0,"y":0,"w":30,"h":40}},
		{"kind":"player","rect":{"x":100,"y":400,"w":100,"h":300},"confidence":0.9}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "TrackShots", decode(t, w)["state"])

	w = e.request(t, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	view := decode(t, w)
	assert.NotEmpty(t, view["sessionId"])
	assert.InDelta(t, 0.4572/50, view["metersPerPixel"], 1e-12)
	assert.NotNil(t, view["hoop"])

	w = e.request(t, http.MethodPost, "/api/session/next-round", "")
	assert.Equal(t, http.StatusConflict, w.Code, "next round needs the summary")

	w = e.request(t, http.MethodPost, "/api/session/finish", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ShowSummary", decode(t, w)["state"])

	w = e.request(t, http.MethodGet, "/api/session/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode(t, w)["summary"].(map[string]interface{})
	assert.Equal(t, float64(0), summary["shotCount"])
	assert.Nil(t, summary["avgSpeed"])

	w = e.request(t, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, view["sessionId"], sessions[0]["sessionId"])

	w = e.request(t, http.MethodGet, "/api/sessions/"+view["sessionId"].(string)+"/shots", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = e.request(t, http.MethodPost, "/api/session/next-round", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DetectingPlayer", decode(t, w)["state"])

	w = e.request(t, http.MethodPost, "/api/session/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Inactive", decode(t, w)["state"])
}

func TestHoopEdit(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.request(t, http.MethodPost, "/api/session/start", "").Code)

	w := e.request(t, http.MethodPut, "/api/session/hoop", `{"rect":{"x":600,"y":200,"w":0,"h":40}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.request(t, http.MethodPut, "/api/session/hoop", `{"rect":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.request(t, http.MethodPut, "/api/session/hoop", `{"rect":{"x":600,"y":200,"w":60,"h":40}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DetectingPlayer", decode(t, w)["state"])
}

func TestUpload(t *testing.T) {
	e := newTestEnv(t)

	w := e.upload(t, "first.mp4")
	require.Equal(t, http.StatusAccepted, w.Code)

	var analyzed string
	select {
	case analyzed = <-e.analyzed:
	case <-time.After(time.Second):
		t.Fatal("analysis did not start")
	}
	assert.Equal(t, filepath.Join(e.source, "first.mp4"), analyzed)

	w = e.upload(t, "first.mp4")
	assert.Equal(t, http.StatusNotAcceptable, w.Code, "duplicate name")

	w = e.upload(t, "second.mp4")
	assert.Equal(t, http.StatusConflict, w.Code, "one analysis at a time")

	w = e.request(t, http.MethodGet, "/api/session", "")
	assert.Equal(t, "first.mp4", decode(t, w)["analyzing"])

	close(e.proceed)
	assert.Eventually(t, func() bool { return e.srv.current() == "" }, time.Second, 5*time.Millisecond)

	w = e.request(t, http.MethodGet, "/api/videos", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["first.mp4"]`, w.Body.String())

	w = e.request(t, http.MethodGet, "/api/play?name=first.mp4", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "not really a video", w.Body.String())

	assert.Equal(t, http.StatusNotFound, e.request(t, http.MethodGet, "/api/play?name=missing.mp4", "").Code)
	assert.Equal(t, http.StatusNotAcceptable, e.request(t, http.MethodGet, "/api/play", "").Code)
}

func TestSessionsWithoutStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := NewServer(&config.Config{}, game.NewLoop(game.New(game.DefaultConfig()), 1), nil, nil)
	w := httptest.NewRecorder()
	srv.SetRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMQTTStats(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, http.StatusServiceUnavailable, e.request(t, http.MethodGet, "/api/mqtt", "").Code)

	e.srv.SetPublisher(emitter.NewPublisher(config.MQTTConfig{Topic: "shots"}))
	w := e.request(t, http.MethodGet, "/api/mqtt", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"connected":false,"published":{},"errors":0,"dropped":0}`, w.Body.String())
}
