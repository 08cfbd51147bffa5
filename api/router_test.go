package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/qrgen/endpoint"
	"github.com/openclaw/qrgen/qr"
	"github.com/openclaw/qrgen/store"
)

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type testEnv struct {
	api     *httptest.Server
	history *store.HistoryStore
}

func setupTest(t *testing.T, base string) *testEnv {
	t.Helper()

	builder, err := qr.NewBuilder(base)
	require.NoError(t, err)

	history, err := store.NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	srv := &Server{
		Sessions:   qr.NewSessions(qr.DefaultSettings(), 0),
		Builder:    builder,
		Downloader: qr.NewDownloader(0, t.TempDir(), discardLog),
		History:    history,
		Log:        discardLog,
		Version:    "test",
		StartTime:  time.Now(),
	}
	ts := httptest.NewServer(NewRouter(srv))
	t.Cleanup(ts.Close)
	return &testEnv{api: ts, history: history}
}

func standIn(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(endpoint.NewRouter(discardLog))
	t.Cleanup(ts.Close)
	return ts
}

func testRequest(t *testing.T, ts *httptest.Server, method, path string, body interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func mount(t *testing.T, env *testEnv) string {
	t.Helper()
	resp := testRequest(t, env.api, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	s := decode[sessionResponse](t, resp)
	require.NotEmpty(t, s.ID)
	return "/sessions/" + s.ID
}

func TestPageAndStatus(t *testing.T) {
	env := setupTest(t, "https://qr.example.com/v1/")

	resp := testRequest(t, env.api, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp = testRequest(t, env.api, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[statusResponse](t, resp)
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, "https://qr.example.com/v1/", st.BaseEndpoint)
	assert.True(t, st.History)
	assert.Equal(t, "test", st.Version)
}

func TestMountDefaultsAndUnmount(t *testing.T) {
	env := setupTest(t, "https://qr.example.com/v1/")
	path := mount(t, env)

	resp := testRequest(t, env.api, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := decode[sessionResponse](t, resp)
	assert.Equal(t, 200, s.State.Size)
	assert.Equal(t, qr.FormatPNG, s.State.Format)
	assert.Equal(t, "FFFFFF", s.State.Foreground)
	assert.Equal(t, "000000", s.State.Background)
	assert.False(t, s.CanGenerate)

	resp = testRequest(t, env.api, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = testRequest(t, env.api, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = testRequest(t, env.api, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGenerateScenario(t *testing.T) {
	base := "https://qr.example.com/v1/create-qr-code/"
	env := setupTest(t, base)
	path := mount(t, env)

	resp := testRequest(t, env.api, http.MethodPatch, path, map[string]interface{}{"content": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[sessionResponse](t, resp).CanGenerate)

	resp = testRequest(t, env.api, http.MethodPost, path+"/generate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	g := decode[generateResponse](t, resp)
	require.True(t, g.Generated)
	assert.Equal(t, base+"?data=hello&size=200x200&format=png&color=FFFFFF&bgcolor=000000", g.URL)
	assert.Equal(t, g.URL, g.State.GeneratedURL)

	resp = testRequest(t, env.api, http.MethodGet, path+"/preview", nil)
	p := decode[qr.Preview](t, resp)
	assert.Equal(t, qr.PreviewImage, p.Mode)
	assert.Equal(t, g.URL, p.ImageURL)

	gens, err := env.history.GetGenerations(10, 0)
	require.NoError(t, err)
	require.Len(t, gens, 1)
	assert.Equal(t, g.URL, gens[0].URL)
	assert.Equal(t, "hello", gens[0].Content)
}

func TestGenerateEmptyContentIsNoop(t *testing.T) {
	env := setupTest(t, "https://qr.example.com/v1/")
	path := mount(t, env)

	resp := testRequest(t, env.api, http.MethodPost, path+"/generate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	g := decode[generateResponse](t, resp)
	assert.False(t, g.Generated)
	assert.Empty(t, g.State.GeneratedURL)

	resp = testRequest(t, env.api, http.MethodGet, path+"/preview", nil)
	p := decode[qr.Preview](t, resp)
	assert.Equal(t, qr.PreviewPlaceholder, p.Mode)

	gens, err := env.history.GetGenerations(10, 0)
	require.NoError(t, err)
	assert.Empty(t, gens)
}

func TestUpdateSessionValidation(t *testing.T) {
	env := setupTest(t, "https://qr.example.com/v1/")
	path := mount(t, env)

	resp := testRequest(t, env.api, http.MethodPatch, path, map[string]interface{}{
		"size": 350, "format": "svg", "color": "#ff0000", "bgcolor": "00ff00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := decode[sessionResponse](t, resp)
	assert.Equal(t, 350, s.State.Size)
	assert.Equal(t, qr.FormatSVG, s.State.Format)
	assert.Equal(t, "ff0000", s.State.Foreground)

	// One bad field rejects the whole update.
	resp = testRequest(t, env.api, http.MethodPatch, path, map[string]interface{}{
		"content": "ignored", "size": 375,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = testRequest(t, env.api, http.MethodGet, path, nil)
	s = decode[sessionResponse](t, resp)
	assert.Equal(t, "", s.State.Content)
	assert.Equal(t, 350, s.State.Size)

	for _, body := range []map[string]interface{}{
		{"format": "gif"},
		{"color": "red"},
		{"bgcolor": "#12345"},
	} {
		resp = testRequest(t, env.api, http.MethodPatch, path, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%v", body)
	}
}

func TestDownloadFromStandIn(t *testing.T) {
	remote := standIn(t)
	env := setupTest(t, remote.URL+"/")
	path := mount(t, env)

	testRequest(t, env.api, http.MethodPatch, path, map[string]interface{}{"content": "hello", "size": 250})
	testRequest(t, env.api, http.MethodPost, path+"/generate", nil)

	resp := testRequest(t, env.api, http.MethodGet, path+"/download", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename=qrcode.png`, resp.Header.Get("Content-Disposition"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 250, img.Bounds().Dx())

	dls, err := env.history.GetDownloads(10, 0)
	require.NoError(t, err)
	require.Len(t, dls, 1)
	assert.Equal(t, "saved", dls[0].Status)
	assert.Equal(t, "qrcode.png", dls[0].Filename)
}

func TestDownloadSVGFilename(t *testing.T) {
	remote := standIn(t)
	env := setupTest(t, remote.URL+"/")
	path := mount(t, env)

	testRequest(t, env.api, http.MethodPatch, path, map[string]interface{}{"content": "hello", "format": "svg"})
	testRequest(t, env.api, http.MethodPost, path+"/generate", nil)

	resp := testRequest(t, env.api, http.MethodGet, path+"/download", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "qrcode.svg")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "<svg"))
}

func TestDownloadWithoutURLIsNoop(t *testing.T) {
	env := setupTest(t, "https://qr.example.com/v1/")
	path := mount(t, env)

	resp := testRequest(t, env.api, http.MethodGet, path+"/download", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	dls, err := env.history.GetDownloads(10, 0)
	require.NoError(t, err)
	assert.Empty(t, dls)
}

func TestDownloadFailureIsSurfaced(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer remote.Close()
	env := setupTest(t, remote.URL+"/")
	path := mount(t, env)

	testRequest(t, env.api, http.MethodPatch, path, map[string]interface{}{"content": "hello"})
	resp := testRequest(t, env.api, http.MethodPost, path+"/generate", nil)
	before := decode[generateResponse](t, resp).State

	resp = testRequest(t, env.api, http.MethodGet, path+"/download", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	e := decode[map[string]string](t, resp)
	assert.Contains(t, e["error"], "download status")

	resp = testRequest(t, env.api, http.MethodGet, path, nil)
	after := decode[sessionResponse](t, resp).State
	assert.NotEmpty(t, after.LastError)
	after.LastError = ""
	assert.Equal(t, before, after)

	resp = testRequest(t, env.api, http.MethodGet, path+"/preview", nil)
	p := decode[qr.Preview](t, resp)
	assert.Contains(t, p.Error, "429")

	resp = testRequest(t, env.api, http.MethodGet, "/history/downloads", nil)
	dls := decode[[]store.Download](t, resp)
	require.Len(t, dls, 1)
	assert.Equal(t, "failed", dls[0].Status)
}

func TestHistoryDisabled(t *testing.T) {
	builder, err := qr.NewBuilder("https://qr.example.com/v1/")
	require.NoError(t, err)
	ts := httptest.NewServer(NewRouter(&Server{
		Sessions:   qr.NewSessions(qr.DefaultSettings(), 0),
		Builder:    builder,
		Downloader: qr.NewDownloader(0, "", discardLog),
		Log:        discardLog,
		StartTime:  time.Now(),
	}))
	defer ts.Close()

	resp := testRequest(t, ts, http.MethodGet, "/history/generations", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = testRequest(t, ts, http.MethodPost, "/sessions", nil)
	id := decode[sessionResponse](t, resp).ID
	testRequest(t, ts, http.MethodPatch, "/sessions/"+id, map[string]interface{}{"content": "x"})
	resp = testRequest(t, ts, http.MethodPost, "/sessions/"+id+"/generate", nil)
	assert.True(t, decode[generateResponse](t, resp).Generated)
}

// serveWithWriteTimeout starts srv behind an http.Server whose WriteTimeout
// is shorter than the remote's response time.
func serveWithWriteTimeout(t *testing.T, srv *Server, timeout time.Duration) *httptest.Server {
	t.Helper()
	ts := httptest.NewUnstartedServer(NewRouter(srv))
	ts.Config.WriteTimeout = timeout
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

func slowRemote(t *testing.T, delay time.Duration, next http.Handler) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		next.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newSlowServer(t *testing.T, remote *httptest.Server) *httptest.Server {
	t.Helper()
	builder, err := qr.NewBuilder(remote.URL + "/")
	require.NoError(t, err)
	return serveWithWriteTimeout(t, &Server{
		Sessions:   qr.NewSessions(qr.DefaultSettings(), 0),
		Builder:    builder,
		Downloader: qr.NewDownloader(0, t.TempDir(), discardLog),
		Log:        discardLog,
		StartTime:  time.Now(),
	}, 300*time.Millisecond)
}

func mountAndGenerate(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := testRequest(t, ts, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	path := "/sessions/" + decode[sessionResponse](t, resp).ID
	testRequest(t, ts, http.MethodPatch, path, map[string]interface{}{"content": "hello"})
	resp = testRequest(t, ts, http.MethodPost, path+"/generate", nil)
	require.True(t, decode[generateResponse](t, resp).Generated)
	return path
}

func TestDownloadOutlastsServerWriteTimeout(t *testing.T) {
	remote := slowRemote(t, 800*time.Millisecond, endpoint.NewRouter(discardLog))
	ts := newSlowServer(t, remote)
	path := mountAndGenerate(t, ts)

	resp := testRequest(t, ts, http.MethodGet, path+"/download", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "qrcode.png")

	_, err := png.Decode(resp.Body)
	require.NoError(t, err)
}

func TestSlowDownloadFailureStillReported(t *testing.T) {
	remote := slowRemote(t, 800*time.Millisecond, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusInternalServerError)
	}))
	ts := newSlowServer(t, remote)
	path := mountAndGenerate(t, ts)

	resp := testRequest(t, ts, http.MethodGet, path+"/download", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	e := decode[map[string]string](t, resp)
	assert.Contains(t, e["error"], "500")
}

func TestMountLimit(t *testing.T) {
	builder, err := qr.NewBuilder("https://qr.example.com/v1/")
	require.NoError(t, err)
	ts := httptest.NewServer(NewRouter(&Server{
		Sessions:   qr.NewSessions(qr.DefaultSettings(), 1),
		Builder:    builder,
		Downloader: qr.NewDownloader(0, "", discardLog),
		Log:        discardLog,
		StartTime:  time.Now(),
	}))
	defer ts.Close()

	resp := testRequest(t, ts, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = testRequest(t, ts, http.MethodPost, "/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = testRequest(t, ts, http.MethodGet, "/status", nil)
	st := decode[statusResponse](t, resp)
	assert.Equal(t, 1, st.Sessions)
	assert.Equal(t, 1, st.MaxSessions)
}

func TestPageOrdersUpdatesBeforeGenerate(t *testing.T) {
	// Content typed by the user is never written back from a PATCH
	// response, and generate is queued behind pending updates.
	assert.Contains(t, widgetPageHTML, "function applyState(data, mounting)")
	assert.Contains(t, widgetPageHTML, "if (mounting) $('content').value = st.content;")
	assert.Equal(t, 1, strings.Count(widgetPageHTML, "applyState(data, true)"))
	assert.Contains(t, widgetPageHTML, "queue(function() {\n      return api('POST', '/generate')")
	assert.NotContains(t, widgetPageHTML, "$('content').value !== st.content")
}

func TestPageKeepsSessionAlive(t *testing.T) {
	assert.Contains(t, widgetPageHTML, "setInterval(function() {\n    if (sessionURL) api('GET', '');")
}
