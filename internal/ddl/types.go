package ddl

// ColumnDef describes a single column of a TableDef.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, TIMESTAMP)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
}

// TableDef holds the table name and an ordered list of columns. The FQN may
// be dotted ("schema.table"); every segment is quoted separately.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}
