package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/lox/energydash/internal/store"
)

// Source is a named tabular resource.
type Source interface {
	// ID is the resolved source identity, used as the cache key.
	ID() string
	Scheme() string
	Frame(ctx context.Context) (dataframe.DataFrame, error)
}

// ParseSource resolves a source identity. Plain paths and file:// URLs are
// CSV files (relative paths are taken from dataDir), sqlite://path?table=t
// names a SQLite table, and ftp://host/path.csv a CSV on an FTP server.
func ParseSource(id, dataDir string) (Source, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &DataSourceError{Source: id, Reason: "no source configured"}
	}

	scheme, rest, ok := strings.Cut(id, "://")
	if !ok {
		return &csvFile{path: resolvePath(id, dataDir)}, nil
	}

	switch scheme {
	case "file":
		return &csvFile{path: resolvePath(rest, dataDir)}, nil
	case "sqlite":
		path, query, _ := strings.Cut(rest, "?")
		values, err := url.ParseQuery(query)
		if err != nil {
			return nil, &DataSourceError{Source: id, Reason: "invalid sqlite source", Err: err}
		}
		table := values.Get("table")
		if table == "" {
			return nil, &DataSourceError{Source: id, Reason: "sqlite source needs ?table="}
		}
		return &sqliteTable{path: resolvePath(path, dataDir), table: table}, nil
	case "ftp":
		u, err := url.Parse(id)
		if err != nil {
			return nil, &DataSourceError{Source: id, Reason: "invalid ftp source", Err: err}
		}
		return newFTPFile(u), nil
	}
	return nil, &DataSourceError{Source: id, Reason: fmt.Sprintf("unsupported scheme %q", scheme)}
}

func resolvePath(p, dataDir string) string {
	if filepath.IsAbs(p) || dataDir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(dataDir, p)
}

var loadOptions = []dataframe.LoadOption{
	dataframe.HasHeader(true),
	dataframe.DetectTypes(false),
	dataframe.DefaultType(series.String),
}

func readCSV(id string, data []byte) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(bytes.NewReader(data), loadOptions...)
	if df.Err != nil {
		return df, &DataSourceError{Source: id, Reason: "unreadable table", Err: df.Err}
	}
	return df, nil
}

type csvFile struct {
	path string
}

func (c *csvFile) ID() string     { return c.path }
func (c *csvFile) Scheme() string { return "file" }

func (c *csvFile) Frame(ctx context.Context) (dataframe.DataFrame, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return dataframe.DataFrame{}, &DataSourceError{Source: c.path, Reason: "file not found", Err: err}
	}
	if err != nil {
		return dataframe.DataFrame{}, &DataSourceError{Source: c.path, Reason: "read failed", Err: err}
	}
	return readCSV(c.path, data)
}

type sqliteTable struct {
	path  string
	table string
}

func (s *sqliteTable) ID() string     { return "sqlite://" + s.path + "?table=" + s.table }
func (s *sqliteTable) Scheme() string { return "sqlite" }

func (s *sqliteTable) Frame(ctx context.Context) (dataframe.DataFrame, error) {
	if _, err := os.Stat(s.path); err != nil {
		return dataframe.DataFrame{}, &DataSourceError{Source: s.ID(), Reason: "database not found", Err: err}
	}
	st, err := store.Open(s.path)
	if err != nil {
		return dataframe.DataFrame{}, &DataSourceError{Source: s.ID(), Reason: "open failed", Err: err}
	}
	defer st.Close()

	records, err := st.ReadTable(ctx, s.table)
	if err != nil {
		return dataframe.DataFrame{}, &DataSourceError{Source: s.ID(), Reason: "read failed", Err: err}
	}
	return framesFromRecords(s.ID(), records)
}

func framesFromRecords(id string, records [][]string) (dataframe.DataFrame, error) {
	df := dataframe.LoadRecords(records, loadOptions...)
	if df.Err != nil {
		return df, &DataSourceError{Source: id, Reason: "unreadable table", Err: df.Err}
	}
	return df, nil
}
