package adapter

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// BigQuery is an interface for reading dataset tables from BigQuery
type BigQuery interface {
	// ReadTable returns the column names in schema order and every row of the table,
	// each cell rendered as text
	ReadTable(ctx context.Context, project, datasetID, table string) ([]string, []map[string]string, error)
}

type bigqueryClient struct {
	client *bigquery.Client
}

// NewBigQuery creates a new BigQuery client
func NewBigQuery(ctx context.Context, projectID string) (BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	return &bigqueryClient{
		client: client,
	}, nil
}

func (bq *bigqueryClient) ReadTable(ctx context.Context, project, datasetID, table string) ([]string, []map[string]string, error) {
	tbl := bq.client.DatasetInProject(project, datasetID).Table(table)

	metadata, err := tbl.Metadata(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to get table metadata",
			goerr.V("project", project),
			goerr.V("dataset", datasetID),
			goerr.V("table", table))
	}

	columns := make([]string, 0, len(metadata.Schema))
	for _, field := range metadata.Schema {
		columns = append(columns, field.Name)
	}

	it := tbl.Read(ctx)

	var rows []map[string]string
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to iterate table rows",
				goerr.V("table", table))
		}

		values := make(map[string]string, len(row))
		for k, v := range row {
			if v == nil {
				values[k] = ""
				continue
			}
			values[k] = fmt.Sprint(v)
		}
		rows = append(rows, values)
	}

	return columns, rows, nil
}
