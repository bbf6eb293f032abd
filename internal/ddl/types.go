package ddl

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: dialect SQL type (e.g., JSONB, BIGSERIAL, NVARCHAR(MAX))
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the fully-qualified table name (FQN) and an ordered list of
// columns. The FQN is expected in dotted form (e.g., "schema.table") and will
// be quoted by renderers.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// SinkTypes are the dialect types of the two sink columns.
type SinkTypes struct {
	ID   string
	Data string
}

// SinkTable returns the definition of a document sink table: an
// auto-incrementing primary key "id" and a non-null "data" payload column.
func SinkTable(fqn string, types SinkTypes) TableDef {
	return TableDef{
		FQN: fqn,
		Columns: []ColumnDef{
			{Name: "id", SQLType: types.ID, PrimaryKey: true},
			{Name: "data", SQLType: types.Data},
		},
	}
}
