// Package knowledge turns vehicle records into the sentences used as the retrieval corpus.
package knowledge

import (
	"fmt"

	"github.com/m-mizutani/evrag/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var ErrMissingField = goerr.New("required field is missing")

var requiredColumns = []string{
	model.ColumnMake,
	model.ColumnModel,
	model.ColumnElectricRange,
}

// Sentence renders a record as "The {Make} {Model} has an electric range of {Electric Range} miles".
// Values are substituted verbatim.
func Sentence(record *model.VehicleRecord) (string, error) {
	values := make([]any, len(requiredColumns))
	for i, column := range requiredColumns {
		v, ok := record.Get(column)
		if !ok {
			return "", goerr.Wrap(ErrMissingField, "record lacks required column", goerr.V("column", column))
		}
		values[i] = v
	}

	return fmt.Sprintf("The %s %s has an electric range of %s miles", values...), nil
}

// Build creates one entry per record, in record order
func Build(records []*model.VehicleRecord) (model.KnowledgeBase, error) {
	kb := make(model.KnowledgeBase, len(records))

	for i, record := range records {
		text, err := Sentence(record)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to build knowledge entry", goerr.V("row", i))
		}

		kb[i] = &model.KnowledgeEntry{
			Text: text,
			Data: record.ToMap(),
		}
	}

	return kb, nil
}
