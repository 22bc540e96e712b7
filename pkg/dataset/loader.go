package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/m-mizutani/evrag/pkg/adapter"
	"github.com/m-mizutani/evrag/pkg/model"
	"github.com/m-mizutani/evrag/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidSource       = goerr.New("invalid dataset source")
	ErrSourceNotConfigured = goerr.New("dataset source client is not configured")
	ErrMalformedData       = goerr.New("malformed dataset")
)

// Loader reads vehicle records from a file, Cloud Storage or BigQuery
type Loader struct {
	storage  adapter.Storage
	bigquery adapter.BigQuery
}

type Option func(*Loader)

func WithStorage(storage adapter.Storage) Option {
	return func(l *Loader) {
		l.storage = storage
	}
}

func WithBigQuery(bq adapter.BigQuery) Option {
	return func(l *Loader) {
		l.bigquery = bq
	}
}

func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every record of the source in source row order
func (l *Loader) Load(ctx context.Context, src *Source) ([]*model.VehicleRecord, error) {
	var (
		records []*model.VehicleRecord
		err     error
	)

	switch src.Kind {
	case SourceFile:
		records, err = l.loadFile(src.Path)
	case SourceStorage:
		records, err = l.loadStorage(ctx, src)
	case SourceBigQuery:
		records, err = l.loadBigQuery(ctx, src)
	default:
		return nil, goerr.Wrap(ErrInvalidSource, "unknown source kind", goerr.V("kind", src.Kind))
	}
	if err != nil {
		return nil, err
	}

	logging.From(ctx).Debug("dataset loaded",
		"source", src.String(),
		"records", len(records))

	return records, nil
}

func (l *Loader) loadFile(path string) ([]*model.VehicleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open dataset file", goerr.V("path", path))
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read dataset file", goerr.V("path", path))
	}
	return records, nil
}

func (l *Loader) loadStorage(ctx context.Context, src *Source) ([]*model.VehicleRecord, error) {
	if l.storage == nil {
		return nil, goerr.Wrap(ErrSourceNotConfigured, "storage client is required", goerr.V("source", src.String()))
	}

	reader, err := l.storage.Get(ctx, src.Bucket, src.Key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open dataset object", goerr.V("source", src.String()))
	}
	defer reader.Close()

	records, err := ReadCSV(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read dataset object", goerr.V("source", src.String()))
	}
	return records, nil
}

func (l *Loader) loadBigQuery(ctx context.Context, src *Source) ([]*model.VehicleRecord, error) {
	if l.bigquery == nil {
		return nil, goerr.Wrap(ErrSourceNotConfigured, "bigquery client is required", goerr.V("source", src.String()))
	}

	columns, rows, err := l.bigquery.ReadTable(ctx, src.Project, src.Dataset, src.Table)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read dataset table", goerr.V("source", src.String()))
	}

	records := make([]*model.VehicleRecord, len(rows))
	for i, row := range rows {
		records[i] = &model.VehicleRecord{
			Columns: columns,
			Values:  row,
		}
	}
	return records, nil
}

// ReadCSV parses CSV with a header line into records. Cells are kept verbatim.
// Repeated header names get a ".N" suffix so that no column is shadowed.
func ReadCSV(r io.Reader) ([]*model.VehicleRecord, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, goerr.Wrap(ErrMalformedData, "dataset has no header line")
	}
	if err != nil {
		return nil, goerr.Wrap(ErrMalformedData, "failed to read header", goerr.V("cause", err.Error()))
	}
	columns := normalizeHeader(header)

	var records []*model.VehicleRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(ErrMalformedData, "failed to read row",
				goerr.V("row", len(records)),
				goerr.V("cause", err.Error()))
		}

		values := make(map[string]string, len(columns))
		for i, column := range columns {
			values[column] = row[i]
		}
		records = append(records, &model.VehicleRecord{
			Columns: columns,
			Values:  values,
		})
	}

	return records, nil
}

func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))

	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			columns[i] = name + "." + strconv.Itoa(n+1)
			continue
		}
		seen[name] = 0
		columns[i] = name
	}
	return columns
}
