package model

// Column names every vehicle source must provide.
const (
	ColumnMake          = "Make"
	ColumnModel         = "Model"
	ColumnElectricRange = "Electric Range"
)

// VehicleRecord is one row of the source dataset. Columns keeps the source column order and
// Values holds each cell as it appeared in the source.
type VehicleRecord struct {
	Columns []string
	Values  map[string]string
}

// Get returns the value of a column and whether the column exists in the record
func (r *VehicleRecord) Get(column string) (string, bool) {
	if r == nil || r.Values == nil {
		return "", false
	}
	v, ok := r.Values[column]
	return v, ok
}

// ToMap returns a copy of the record as column name to value
func (r *VehicleRecord) ToMap() map[string]string {
	data := make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		data[k] = v
	}
	return data
}
