package opendata

import (
	"archive/zip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collisionsCSV = "crash_date,borough\n2024-04-26,BROOKLYN\n2024-04-27,QUEENS\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	dir := t.TempDir()
	return NewClient(dir, 5*time.Second, discardLogger()), dir
}

func TestFetch_DownloadsAndParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, collisionsCSV) //nolint:errcheck
	}))
	defer srv.Close()

	client, dir := newTestClient(t)

	table, err := client.Fetch(context.Background(), Source{
		Name:     "collisions",
		URL:      srv.URL,
		Filename: "raw_collisions.csv",
	})
	require.NoError(t, err)

	assert.Equal(t, "collisions", table.Name)
	assert.Equal(t, []string{"crash_date", "borough"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"2024-04-26", "BROOKLYN"}, table.Rows[0])

	// Raw bytes are cached under the data directory.
	data, err := os.ReadFile(filepath.Join(dir, "raw_collisions.csv"))
	require.NoError(t, err)
	assert.Equal(t, collisionsCSV, string(data))
}

func TestFetch_CachedFileShortCircuitsDownload(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		io.WriteString(w, collisionsCSV) //nolint:errcheck
	}))
	defer srv.Close()

	client, dir := newTestClient(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw_collisions.csv"), []byte(collisionsCSV), 0o600))

	table, err := client.Fetch(context.Background(), Source{
		Name:     "collisions",
		URL:      srv.URL,
		Filename: "raw_collisions.csv",
	})
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
	assert.Zero(t, hits, "cached file must skip the download")
}

func TestFetch_Non2xxIsRetrievalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, dir := newTestClient(t)

	_, err := client.Fetch(context.Background(), Source{
		Name:     "collisions",
		URL:      srv.URL,
		Filename: "raw_collisions.csv",
	})
	require.Error(t, err)

	var retErr *RetrievalError
	require.ErrorAs(t, err, &retErr)
	assert.Equal(t, http.StatusServiceUnavailable, retErr.Status)
	assert.Equal(t, srv.URL, retErr.URL)

	// A failed download leaves no poisoned cache file behind.
	_, statErr := os.Stat(filepath.Join(dir, "raw_collisions.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetch_TimeoutIsRetrievalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	dir := t.TempDir()
	client := NewClient(dir, 20*time.Millisecond, discardLogger())

	_, err := client.Fetch(context.Background(), Source{
		Name:     "collisions",
		URL:      srv.URL,
		Filename: "raw_collisions.csv",
	})
	require.Error(t, err)

	var retErr *RetrievalError
	assert.ErrorAs(t, err, &retErr)
}

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestFetch_ZipMemberExtraction(t *testing.T) {
	client, dir := newTestClient(t)
	writeZip(t, filepath.Join(dir, "streets.zip"), map[string]string{
		"readme.txt":           "not this one",
		"snd/street_names.csv": "street_name,borough_code\nBROADWAY,1\n",
	})

	table, err := client.Fetch(context.Background(), Source{
		Name:      "streets",
		URL:       "http://unused.invalid/streets.zip",
		Filename:  "streets.zip",
		ZipMember: ".csv",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"street_name", "borough_code"}, table.Header)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"BROADWAY", "1"}, table.Rows[0])
}

func TestFetch_MissingZipMemberIsArchiveError(t *testing.T) {
	client, dir := newTestClient(t)
	writeZip(t, filepath.Join(dir, "streets.zip"), map[string]string{
		"readme.txt": "nothing tabular here",
	})

	_, err := client.Fetch(context.Background(), Source{
		Name:      "streets",
		URL:       "http://unused.invalid/streets.zip",
		Filename:  "streets.zip",
		ZipMember: ".csv",
	})
	require.Error(t, err)

	var archErr *ArchiveError
	require.ErrorAs(t, err, &archErr)
	assert.Equal(t, ".csv", archErr.Member)
}

func TestFetch_RaggedRowsAccepted(t *testing.T) {
	client, dir := newTestClient(t)
	csv := "a,b,c\n1,2,3\n4,5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ragged.csv"), []byte(csv), 0o600))

	table, err := client.Fetch(context.Background(), Source{
		Name:     "ragged",
		URL:      "http://unused.invalid/ragged.csv",
		Filename: "ragged.csv",
	})
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
}
