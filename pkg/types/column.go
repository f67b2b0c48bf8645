package types

// ColumnType is the declared storage type of a dynamic template column. The
// names double as the SQL type in dynamic-table DDL; SQLite accepts them as
// loose type affinities and Postgres natively.
type ColumnType string

const (
	ColumnBool      ColumnType = "bool"
	ColumnInteger   ColumnType = "integer"
	ColumnFloat     ColumnType = "float8"
	ColumnTimestamp ColumnType = "timestamp"
	ColumnVarchar   ColumnType = "varchar"
)

// ColumnDescriptor is one row of a template's column registry.
type ColumnDescriptor struct {
	TemplateID int64
	Name       string
	Type       ColumnType
}
