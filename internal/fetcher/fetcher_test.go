package fetcher

import (
	"context"
	"ldmonitor/internal/components/telemetry"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, srv *httptest.Server, cookies map[string]string) *Fetcher {
	t.Helper()
	parsed, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	f, err := New(Options{
		Cookies:                 cookies,
		DiscourseHosts:          []string{parsed.Hostname()},
		RequestsPerSecond:       100,
		DisableCloudflareBypass: true,
	}, telemetry.NewRecorder())
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestFetchRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("_t")
		if err != nil || cookie.Value != "session" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("<h1>hello</h1>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, map[string]string{"127.0.0.1": "_t=session; other=1"})
	body, err := f.FetchRaw(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, "<h1>hello</h1>", body)

	anonymous := newTestFetcher(t, srv, nil)
	_, err = anonymous.FetchRaw(context.Background(), srv.URL+"/")
	require.Error(t, err)
	require.True(t, IsStatus(err, http.StatusForbidden))
	require.Equal(t, "HTTP 403", err.Error())
}

func TestFetchJSONDiscourseHeaders(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"username": "alice"}}`))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, nil)

	var out struct {
		Data struct {
			Username string `json:"username"`
		} `json:"data"`
	}
	err := f.FetchJSON(context.Background(), srv.URL+"/api/v1/oauth/user-info", &out)
	require.NoError(t, err)
	require.Equal(t, "alice", out.Data.Username)
	require.Equal(t, "XMLHttpRequest", gotHeaders.Get("X-Requested-With"))
	require.Equal(t, "true", gotHeaders.Get("Discourse-Present"))
	require.Equal(t, "application/json, text/plain, */*", gotHeaders.Get("Accept"))

	plain, err := New(Options{DisableCloudflareBypass: true, RequestsPerSecond: 100}, telemetry.NewRecorder())
	require.NoError(t, err)
	err = plain.FetchJSON(context.Background(), srv.URL+"/", &out)
	require.NoError(t, err)
	require.Empty(t, gotHeaders.Get("X-Requested-With"))
	require.Empty(t, gotHeaders.Get("Discourse-Present"))
}

func TestFetchJSONErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/garbage":
			w.Write([]byte("<html>not json</html>"))
		}
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, nil)

	var out map[string]any
	err := f.FetchJSON(context.Background(), srv.URL+"/limited", &out)
	require.True(t, IsStatus(err, http.StatusTooManyRequests))
	require.Contains(t, err.Error(), "429")

	err = f.FetchJSON(context.Background(), srv.URL+"/garbage", &out)
	require.Error(t, err)
	require.False(t, IsStatus(err, http.StatusTooManyRequests))
}

func TestFetchJSONWithHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRF-Token") != "token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, nil)
	var out struct {
		Ok bool `json:"ok"`
	}
	err := f.FetchJSONWithHeaders(context.Background(), srv.URL, map[string]string{"X-CSRF-Token": "token"}, &out)
	require.NoError(t, err)
	require.True(t, out.Ok)
}

func TestIsDiscourseHost(t *testing.T) {
	f := &Fetcher{discourseHosts: []string{"linux.do"}}
	require.True(t, f.isDiscourseHost("https://linux.do/u/alice/summary.json"))
	require.True(t, f.isDiscourseHost("https://credit.linux.do/api/v1/oauth/user-info"))
	require.False(t, f.isDiscourseHost("https://notlinux.do/"))
	require.False(t, f.isDiscourseHost("https://example.com/linux.do"))
}
