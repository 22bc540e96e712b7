package dataset

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

type SourceKind string

const (
	SourceFile     SourceKind = "file"
	SourceStorage  SourceKind = "gcs"
	SourceBigQuery SourceKind = "bigquery"
)

const (
	storageScheme  = "gs://"
	bigqueryScheme = "bq://"
)

// Source identifies where vehicle records are loaded from
type Source struct {
	Kind SourceKind

	// File
	Path string

	// Cloud Storage
	Bucket string
	Key    string

	// BigQuery
	Project string
	Dataset string
	Table   string
}

// ParseSource parses a dataset location. Supported forms are a local file path,
// "gs://bucket/path/to/object.csv" and "bq://project.dataset.table".
func ParseSource(location string) (*Source, error) {
	if location == "" {
		return nil, goerr.Wrap(ErrInvalidSource, "dataset location is empty")
	}

	switch {
	case strings.HasPrefix(location, storageScheme):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(location, storageScheme), "/")
		if !ok || bucket == "" || key == "" {
			return nil, goerr.Wrap(ErrInvalidSource, "storage location must be gs://bucket/key",
				goerr.V("location", location))
		}
		return &Source{Kind: SourceStorage, Bucket: bucket, Key: key}, nil

	case strings.HasPrefix(location, bigqueryScheme):
		parts := strings.Split(strings.TrimPrefix(location, bigqueryScheme), ".")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, goerr.Wrap(ErrInvalidSource, "bigquery location must be bq://project.dataset.table",
				goerr.V("location", location))
		}
		return &Source{Kind: SourceBigQuery, Project: parts[0], Dataset: parts[1], Table: parts[2]}, nil

	default:
		return &Source{Kind: SourceFile, Path: location}, nil
	}
}

func (s *Source) String() string {
	switch s.Kind {
	case SourceStorage:
		return storageScheme + s.Bucket + "/" + s.Key
	case SourceBigQuery:
		return bigqueryScheme + s.Project + "." + s.Dataset + "." + s.Table
	default:
		return s.Path
	}
}
