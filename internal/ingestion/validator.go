package ingestion

// RequiredColumns must all be present, with no empty cells, for a sheet to
// be ingested.
var RequiredColumns = []string{"Advertiser", "Brand", "Start", "End", "Format", "Platform", "Impr"}

// ValidateColumns checks the whole table once before any row is built. It
// returns a *SchemaError naming every offending column, not just the first.
func ValidateColumns(table Table) error {
	schemaErr := &SchemaError{}
	for _, column := range RequiredColumns {
		if !table.HasColumn(column) {
			schemaErr.add(column, true)
			continue
		}
		for _, row := range table.Rows {
			if row.Get(column).IsEmpty() {
				schemaErr.add(column, false)
				break
			}
		}
	}
	if len(schemaErr.offenders) > 0 {
		return schemaErr
	}
	return nil
}
