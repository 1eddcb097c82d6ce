// Package opendata downloads raw tabular datasets from the NYC Open Data
// portal (or any HTTP endpoint serving CSV, optionally inside a ZIP archive)
// and parses them into in-memory tables.
package opendata

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stoopdata/nyc-collision-etl/internal/domain"
)

// RetrievalError is a fatal acquisition failure: transport error, timeout, or
// non-2xx response. There is no retry and no partial-success mode.
type RetrievalError struct {
	URL    string
	Status int // 0 when the request never completed
	Err    error
}

func (e *RetrievalError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// ArchiveError reports a ZIP source without the expected member.
type ArchiveError struct {
	Archive string
	Member  string // suffix that was searched for
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: no member matching %q", e.Archive, e.Member)
}

// Source describes one remote dataset.
type Source struct {
	Name     string // reference name, used as the table name and in logs
	URL      string
	Filename string // destination file under the data directory
	// ZipMember selects a member of a ZIP source by suffix match on entry
	// names. Empty means the source is plain CSV.
	ZipMember string
}

// Client fetches sources with a fixed per-request timeout and a simple file
// cache: a raw file already present under the data directory short-circuits
// the download.
type Client struct {
	httpClient *http.Client
	dataDir    string
	logger     *slog.Logger
}

// NewClient creates a download client rooted at dataDir.
func NewClient(dataDir string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		dataDir:    dataDir,
		logger:     logger,
	}
}

// Fetch returns the source as a raw table, downloading it first unless a
// cached copy exists. Any failure is fatal to the run.
func (c *Client) Fetch(ctx context.Context, src Source) (*domain.RawTable, error) {
	path := filepath.Join(c.dataDir, src.Filename)

	if _, err := os.Stat(path); err == nil {
		c.logger.Info("using cached raw file", "source", src.Name, "path", path)
	} else if errors.Is(err, os.ErrNotExist) {
		if err := c.download(ctx, src.URL, path); err != nil {
			return nil, err
		}
		c.logger.Info("downloaded raw file", "source", src.Name, "url", src.URL, "path", path)
	} else {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	table, err := parseTable(path, src)
	if err != nil {
		return nil, err
	}
	c.logger.Info("parsed raw table", "source", src.Name, "rows", len(table.Rows))
	return table, nil
}

func (c *Client) download(ctx context.Context, url, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &RetrievalError{URL: url, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RetrievalError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RetrievalError{URL: url, Status: resp.StatusCode}
	}

	// Write to a temp file first so an interrupted download never poisons
	// the cache.
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return &RetrievalError{URL: url, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func parseTable(path string, src Source) (*domain.RawTable, error) {
	if src.ZipMember != "" {
		return parseZipTable(path, src)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readCSV(f, src.Name)
}

func parseZipTable(path string, src Source) (*domain.RawTable, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer archive.Close()

	for _, entry := range archive.File {
		if !strings.HasSuffix(entry.Name, src.ZipMember) {
			continue
		}
		member, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("open archive member %s: %w", entry.Name, err)
		}
		defer member.Close()

		return readCSV(member, src.Name)
	}

	return nil, &ArchiveError{Archive: path, Member: src.ZipMember}
}

func readCSV(r io.Reader, name string) (*domain.RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // source exports pad rows inconsistently

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s row: %w", name, err)
		}
		rows = append(rows, row)
	}

	return &domain.RawTable{Name: name, Header: header, Rows: rows}, nil
}
