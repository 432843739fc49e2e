package mocksocrata_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atd-data-tech/socrata-metadata-pub/pkg/mocksocrata"
	"github.com/atd-data-tech/socrata-metadata-pub/pkg/socrata"
)

func newServer(t *testing.T) (*mocksocrata.Server, *httptest.Server) {
	t.Helper()
	mock := mocksocrata.New()
	mock.RequireBasicAuth("user", "pass")
	ts := httptest.NewServer(mock.Handler())
	t.Cleanup(ts.Close)
	return mock, ts
}

func do(t *testing.T, method, url string, body io.Reader, authed bool) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if authed {
		req.SetBasicAuth("user", "pass")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func TestLoadFixtures(t *testing.T) {
	t.Parallel()

	mock, ts := newServer(t)
	f, err := os.Open("testdata/fixtures.json")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.NoError(t, mock.LoadFixtures(f))

	_, b := do(t, http.MethodGet, ts.URL+"/api/catalog/v1?domains=datahub.austintexas.gov", nil, false)
	var anon socrata.CatalogResponse
	require.NoError(t, json.Unmarshal(b, &anon))
	assert.Equal(t, 2, anon.ResultSetSize)

	_, b = do(t, http.MethodGet, ts.URL+"/api/catalog/v1?domains=datahub.austintexas.gov", nil, true)
	var full socrata.CatalogResponse
	require.NoError(t, json.Unmarshal(b, &full))
	require.Len(t, full.Results, 3)
	assert.Equal(t, "p9qk-0c2m", full.Results[1].ID())
	assert.Equal(t, "8812", full.Results[0].Resource.DownloadCount.String())

	resp, b := do(t, http.MethodGet, ts.URL+"/resource/x4e1-92f3.json?$select=count(*)+as+count", nil, true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"count":"1520"}]`, string(b))
}

func TestLoadFixtures_InvalidJSON(t *testing.T) {
	t.Parallel()

	require.Error(t, mocksocrata.New().LoadFixtures(strings.NewReader(`{"not": "an array"}`)))
}

func TestCatalog_Limit(t *testing.T) {
	t.Parallel()

	mock, ts := newServer(t)
	for _, id := range []string{"aaaa-0001", "aaaa-0002", "aaaa-0003"} {
		mock.AddAsset(mocksocrata.NewAsset(id, "dataset", "o"), true)
	}
	_, b := do(t, http.MethodGet, ts.URL+"/api/catalog/v1?domains=d&limit=2", nil, false)
	var out socrata.CatalogResponse
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Len(t, out.Results, 2)
	assert.Equal(t, 3, out.ResultSetSize)
}

func TestCatalog_RequiresDomain(t *testing.T) {
	t.Parallel()

	_, ts := newServer(t)
	resp, _ := do(t, http.MethodGet, ts.URL+"/api/catalog/v1", nil, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResource_RequiresAuth(t *testing.T) {
	t.Parallel()

	mock, ts := newServer(t)
	mock.SetRowCount("aaaa-0001", 3)
	resp, _ := do(t, http.MethodGet, ts.URL+"/resource/aaaa-0001.json?$select=count(*)+as+count", nil, false)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCount_UnsupportedSelect(t *testing.T) {
	t.Parallel()

	mock, ts := newServer(t)
	mock.SetRowCount("aaaa-0001", 3)
	resp, _ := do(t, http.MethodGet, ts.URL+"/resource/aaaa-0001.json?$select=*", nil, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCount_AsNumber(t *testing.T) {
	t.Parallel()

	mock, ts := newServer(t)
	mock.SetRowCount("aaaa-0001", 3)
	mock.CountsAsNumbers(true)
	_, b := do(t, http.MethodGet, ts.URL+"/resource/aaaa-0001.json?$select=count(*)+as+count", nil, true)
	assert.JSONEq(t, `[{"count":3}]`, string(b))
}

func TestReplace_ReportsCreatedAndDeleted(t *testing.T) {
	t.Parallel()

	mock, ts := newServer(t)
	url := ts.URL + "/resource/28ys-ieqv.json"

	_, b := do(t, http.MethodPut, url, strings.NewReader(`[{"id":"a"},{"id":"b"}]`), true)
	var res socrata.ReplaceResult
	require.NoError(t, json.Unmarshal(b, &res))
	assert.Equal(t, 2, res.RowsCreated)
	assert.Equal(t, 0, res.RowsDeleted)

	_, b = do(t, http.MethodPut, url, strings.NewReader(`[{"id":"c"}]`), true)
	require.NoError(t, json.Unmarshal(b, &res))
	assert.Equal(t, 1, res.RowsCreated)
	assert.Equal(t, 2, res.RowsDeleted)

	table, ok := mock.Table("28ys-ieqv")
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"c"}]`, string(table))
}

func TestReplace_RejectsNonArray(t *testing.T) {
	t.Parallel()

	mock, ts := newServer(t)
	resp, _ := do(t, http.MethodPut, ts.URL+"/resource/28ys-ieqv.json", strings.NewReader(`{}`), true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_, ok := mock.Table("28ys-ieqv")
	assert.False(t, ok)
}

func TestCalls_RecordsAuthentication(t *testing.T) {
	t.Parallel()

	mock, ts := newServer(t)
	do(t, http.MethodGet, ts.URL+"/api/catalog/v1?domains=d", nil, false)
	do(t, http.MethodGet, ts.URL+"/api/catalog/v1?domains=d", nil, true)

	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.False(t, calls[0].Authenticated)
	assert.True(t, calls[1].Authenticated)
	assert.Equal(t, "/api/catalog/v1", calls[1].Path)
}
