package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/stub-server/handler"
	"github.com/stevemurr/stub-server/record"
	"github.com/stevemurr/stub-server/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func widgetSource() *store.MemorySource {
	src := store.NewMemorySource()
	src.Put("widgets", []record.Record{
		record.MustParse(`{"id":1,"color":"red"}`),
		record.MustParse(`{"id":2,"color":"blue"}`),
		record.MustParse(`{"id":3,"color":"red"}`),
	})
	return src
}

func setup(t *testing.T, src store.Source, opts ...handler.Option) *httptest.Server {
	t.Helper()
	h := handler.New(store.NewCollections(src), append([]handler.Option{handler.WithLogger(quiet)}, opts...)...)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func decodeJSON(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal(b, &v))
	return v
}

func listIDs(t *testing.T, b []byte) ([]float64, float64) {
	t.Helper()
	var v struct {
		Items []struct {
			ID float64 `json:"id"`
		} `json:"items"`
		TotalItems float64 `json:"totalItems"`
	}
	require.NoError(t, json.Unmarshal(b, &v))
	ids := []float64{}
	for _, it := range v.Items {
		ids = append(ids, it.ID)
	}
	return ids, v.TotalItems
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRootAndHealth(t *testing.T) {
	ts := setup(t, store.NewMemorySource())

	resp, body := do(t, "GET", ts.URL+"/", "")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if decodeJSON(t, body)["status"] != "ok" {
		t.Fatalf("expected status=ok, got %s", body)
	}

	resp, _ = do(t, "GET", ts.URL+"/health", "")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWidgetsExample(t *testing.T) {
	ts := setup(t, widgetSource())
	g := golden(t)

	resp, body := do(t, "GET", ts.URL+"/api/widgets?color=red&orderBy=id%20desc", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	g.Assert(t, "widgets_red_desc", body)

	resp, body = do(t, "POST", ts.URL+"/api/widgets", `{"color":"green"}`)
	require.Equal(t, 200, resp.StatusCode)
	g.Assert(t, "widgets_create", body)

	resp, body = do(t, "DELETE", ts.URL+"/api/widgets/1", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Empty(t, body)

	resp, body = do(t, "GET", ts.URL+"/api/widgets?color=red", "")
	require.Equal(t, 200, resp.StatusCode)
	g.Assert(t, "widgets_red_after_delete", body)
}

func TestGetByID(t *testing.T) {
	ts := setup(t, widgetSource())

	resp, body := do(t, "GET", ts.URL+"/api/widgets/2", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"id":2,"color":"blue"}`, string(body))

	resp, body = do(t, "GET", ts.URL+"/api/widgets/42", "")
	require.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "Item with Id 42 is not found.", decodeJSON(t, body)["detail"])

	resp, _ = do(t, "GET", ts.URL+"/api/widgets/abc", "")
	assert.Equal(t, 404, resp.StatusCode)

	resp, _ = do(t, "GET", ts.URL+"/api/widgets/99999999999999999999", "")
	assert.Equal(t, 404, resp.StatusCode)
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	ts := setup(t, store.NewMemorySource())

	for want := 1.0; want <= 3; want++ {
		resp, body := do(t, "POST", ts.URL+"/api/tasks", `{"id":77,"title":"x"}`)
		require.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, want, decodeJSON(t, body)["id"])
	}

	_, body := do(t, "GET", ts.URL+"/api/tasks", "")
	ids, total := listIDs(t, body)
	assert.Equal(t, []float64{1, 2, 3}, ids)
	assert.Equal(t, 3.0, total)
}

func TestCreateRejectsBadBodies(t *testing.T) {
	ts := setup(t, store.NewMemorySource())
	for _, body := range []string{`not json`, `[1,2]`, `"str"`, `{"a":1}{}`} {
		resp, _ := do(t, "POST", ts.URL+"/api/tasks", body)
		assert.Equal(t, 400, resp.StatusCode, body)
	}
	resp, _ := do(t, "POST", ts.URL+"/api/tasks", "")
	assert.Equal(t, 400, resp.StatusCode)
}

func TestDeeplyNestedBodyIsRejected(t *testing.T) {
	ts := setup(t, widgetSource())
	body := `{"a":` + strings.Repeat("[", 10<<20-16)

	resp, b := do(t, "POST", ts.URL+"/api/widgets", body)
	require.Equal(t, 400, resp.StatusCode)
	assert.Contains(t, decodeJSON(t, b)["detail"], "nested too deeply")

	resp, _ = do(t, "PUT", ts.URL+"/api/widgets/1", body)
	assert.Equal(t, 400, resp.StatusCode)

	resp, _ = do(t, "GET", ts.URL+"/api/widgets", "")
	assert.Equal(t, 200, resp.StatusCode, "server still serving")
}

func TestUpdate(t *testing.T) {
	ts := setup(t, widgetSource())

	resp, body := do(t, "PUT", ts.URL+"/api/widgets/2", `{"id":500,"color":"teal","size":"xl"}`)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, `{"id":2,"color":"teal","size":"xl"}`+"\n", string(body))

	_, body = do(t, "GET", ts.URL+"/api/widgets", "")
	ids, total := listIDs(t, body)
	assert.Equal(t, []float64{1, 2, 3}, ids, "position is kept")
	assert.Equal(t, 3.0, total)

	resp, body = do(t, "PUT", ts.URL+"/api/widgets/9", `{"color":"none"}`)
	require.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "Item with Id 9 is not found.", decodeJSON(t, body)["detail"])

	_, body = do(t, "GET", ts.URL+"/api/widgets", "")
	_, total = listIDs(t, body)
	assert.Equal(t, 3.0, total)
}

func TestDeleteMissingIsOK(t *testing.T) {
	ts := setup(t, widgetSource())
	resp, _ := do(t, "DELETE", ts.URL+"/api/widgets/42", "")
	assert.Equal(t, 200, resp.StatusCode)
}

func TestListPaginationAndErrors(t *testing.T) {
	ts := setup(t, widgetSource())

	resp, body := do(t, "GET", ts.URL+"/api/widgets?orderBy=id%20desc&skip=1&limit=1", "")
	require.Equal(t, 200, resp.StatusCode)
	ids, total := listIDs(t, body)
	assert.Equal(t, []float64{2}, ids)
	assert.Equal(t, 3.0, total)

	resp, body = do(t, "GET", ts.URL+"/api/widgets?skip=ten", "")
	require.Equal(t, 400, resp.StatusCode)
	assert.Contains(t, decodeJSON(t, body)["detail"], "skip")

	resp, _ = do(t, "GET", ts.URL+"/api/widgets?limit=-3", "")
	assert.Equal(t, 400, resp.StatusCode)
}

func TestListUnknownCollectionIsEmpty(t *testing.T) {
	ts := setup(t, store.NewMemorySource())
	resp, body := do(t, "GET", ts.URL+"/api/nothing", "")
	require.Equal(t, 200, resp.StatusCode)
	golden(t).Assert(t, "empty_list", body)
}

func TestDirBackedServer(t *testing.T) {
	dir := t.TempDir()
	fixture := `[{"id":1,"name":"Ann","address":{"city":"Oslo"}},{"id":2,"name":"bob","address":{"city":"Bergen"}},"junk"]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "people.json"), []byte(fixture), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"oops":`), 0o644))
	ts := setup(t, store.NewDirSource(dir))

	resp, body := do(t, "GET", ts.URL+"/api/people?orderBy=address.city", "")
	require.Equal(t, 200, resp.StatusCode)
	golden(t).Assert(t, "people_by_city", body)

	resp, body = do(t, "GET", ts.URL+"/api/people?address.city=oslo", "")
	require.Equal(t, 200, resp.StatusCode)
	ids, _ := listIDs(t, body)
	assert.Equal(t, []float64{1}, ids)

	resp, body = do(t, "GET", ts.URL+"/api/broken", "")
	require.Equal(t, 200, resp.StatusCode)
	_, total := listIDs(t, body)
	assert.Equal(t, 0.0, total)

	_, body = do(t, "GET", ts.URL+"/collections", "")
	assert.JSONEq(t, `["broken","people"]`, string(body))
}

func TestStrictLoadSurfacesErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`42`), 0o644))
	h := handler.New(store.NewCollections(store.NewDirSource(dir), store.WithStrictLoad()), handler.WithLogger(quiet))
	ts := httptest.NewServer(h)
	defer ts.Close()

	resp, _ := do(t, "GET", ts.URL+"/api/broken", "")
	assert.Equal(t, 500, resp.StatusCode)
}

func TestCollectionsList(t *testing.T) {
	ts := setup(t, widgetSource())
	do(t, "POST", ts.URL+"/api/tasks", `{"title":"a"}`)

	resp, body := do(t, "GET", ts.URL+"/collections", "")
	require.Equal(t, 200, resp.StatusCode)
	var names []string
	require.NoError(t, json.Unmarshal(body, &names))
	assert.Equal(t, []string{"tasks", "widgets"}, names)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := setup(t, widgetSource())
	resp, _ := do(t, "PATCH", ts.URL+"/api/widgets/1", `{}`)
	assert.Equal(t, 405, resp.StatusCode)
}

func TestRequestID(t *testing.T) {
	ts := setup(t, widgetSource())

	resp, _ := do(t, "GET", ts.URL+"/health", "")
	assert.Len(t, resp.Header.Get("X-Request-Id"), 36)

	req, err := http.NewRequest("GET", ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "abc-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-Id"))
}

func corsRequest(t *testing.T, method, url, origin string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", origin)
	if method == "OPTIONS" {
		req.Header.Set("Access-Control-Request-Method", "PUT")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestCORS(t *testing.T) {
	ts := setup(t, widgetSource())
	const origin = "http://localhost:3000"

	resp := corsRequest(t, "OPTIONS", ts.URL+"/api/widgets/1", origin)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, origin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	resp = corsRequest(t, "GET", ts.URL+"/api/widgets", origin)
	assert.Equal(t, origin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	resp = corsRequest(t, "GET", ts.URL+"/api/widgets", "https://other.example")
	assert.Equal(t, "https://other.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowedOrigins(t *testing.T) {
	ts := setup(t, widgetSource(), handler.WithAllowedOrigins([]string{"https://app.example"}))

	resp := corsRequest(t, "GET", ts.URL+"/api/widgets", "https://app.example")
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = corsRequest(t, "GET", ts.URL+"/api/widgets", "https://evil.example")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := handler.NewMetrics(reg)
	colls := store.NewCollections(widgetSource(), store.WithLoadHook(m.ObserveLoad))
	ts := httptest.NewServer(handler.New(colls, handler.WithLogger(quiet), handler.WithMetrics(m, reg)))
	defer ts.Close()

	do(t, "GET", ts.URL+"/api/widgets", "")
	do(t, "GET", ts.URL+"/api/widgets/1", "")

	resp, body := do(t, "GET", ts.URL+"/metrics", "")
	require.Equal(t, 200, resp.StatusCode)
	text := string(body)
	assert.Contains(t, text, `stub_http_requests_total{code="200",method="GET",route="/api/{name}"} 1`)
	assert.Contains(t, text, `stub_collection_loads_total{result="ok"} 1`)
	assert.Contains(t, text, `stub_collection_loaded_records{collection="widgets"} 3`)
}

func TestConcurrentRequests(t *testing.T) {
	ts := setup(t, store.NewMemorySource())
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			resp, err := http.Post(ts.URL+"/api/items", "application/json", bytes.NewReader([]byte(`{"x":1}`)))
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
	_, body := do(t, "GET", ts.URL+"/api/items?orderBy=id", "")
	ids, total := listIDs(t, body)
	assert.Equal(t, 20.0, total)
	for i, id := range ids {
		assert.Equal(t, float64(i+1), id)
	}
}
