package tagging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m4bforge/m4bforge/pkg/jobs"
)

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestApplyEndpointJobOutlivesRequest(t *testing.T) {
	fx := setupTagging(t)
	fx.catalog.details = &Metadata{ASIN: "B0TEST", Title: "A Book", Author: "Someone"}
	fx.catalog.delay = 300 * time.Millisecond

	server := httptest.NewServer(Router(fx.o, fx.files))
	t.Cleanup(server.Close)

	target := fx.readyFile(t, "book.m4b")
	file, err := fx.files.RegisterPath(target)
	require.NoError(t, err)

	resp := postJSON(t, server.URL+"/apply", map[string]string{
		"fileId": file.ID,
		"asin":   "B0TEST",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	// The catalog fetch outlasts the request by design; the job must still
	// complete instead of dying with the request context.
	job := waitForJob(t, fx.store, body.JobID, jobs.StatusCompleted)
	fx.o.Wait()
	assert.FileExists(t, job.OutputFile)

	tagged, err := fx.files.GetByID(file.ID)
	require.NoError(t, err)
	assert.True(t, tagged.IsTagged)
}

func TestApplyEndpointUnknownFile(t *testing.T) {
	fx := setupTagging(t)

	server := httptest.NewServer(Router(fx.o, fx.files))
	t.Cleanup(server.Close)

	resp := postJSON(t, server.URL+"/apply", map[string]string{
		"fileId": "missing",
		"asin":   "B0TEST",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchEndpoint(t *testing.T) {
	fx := setupTagging(t)
	fx.catalog.results = []SearchResult{{ASIN: "A1", Title: "A Book", Locale: "com"}}

	server := httptest.NewServer(Router(fx.o, fx.files))
	t.Cleanup(server.Close)

	target := fx.readyFile(t, "A_Great_Book.m4b")
	resp := postJSON(t, server.URL+"/search", map[string]string{"file": target})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		JobID      string         `json:"jobId"`
		Candidates []SearchResult `json:"candidates"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Candidates, 1)
	assert.Equal(t, "A1", body.Candidates[0].ASIN)

	job, err := fx.store.Get(body.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, job.Status)
}

func TestListUntaggedEndpoint(t *testing.T) {
	fx := setupTagging(t)
	target := fx.readyFile(t, "book.m4b")
	_, err := fx.files.RegisterPath(target)
	require.NoError(t, err)

	server := httptest.NewServer(Router(fx.o, fx.files))
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/files")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Files []fileResponse `json:"files"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Files, 1)
	assert.Equal(t, target, body.Files[0].FilePath)
	assert.False(t, body.Files[0].IsTagged)
}
