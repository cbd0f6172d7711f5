// Package metastore defines the southbound pluggable metastore client
// (§6) the Table Loader uses to materialize incomplete objects.
package metastore

import "context"

// DatabaseRecord is the upstream metastore's view of a database.
type DatabaseRecord struct {
	Name    string
	Comment string
}

// TableRecord is the upstream metastore's view of a table or view.
type TableRecord struct {
	Database string
	Name     string
	IsView   bool
	ViewSQL  string
	Columns  []string
}

// FunctionRecord is the upstream metastore's view of a UDF.
type FunctionRecord struct {
	Database  string
	Name      string
	Signature string
}

// PartitionSpec names a partition by column=value pairs.
type PartitionSpec map[string]string

// Client is the pluggable southbound interface to the upstream metastore
// (§6). The schema of the upstream metastore is explicitly out of scope
// (SPEC_FULL.md §7); this interface only names the operations catalogd's
// loader and invalidation paths need.
type Client interface {
	ListDatabases(ctx context.Context) ([]DatabaseRecord, error)
	GetDatabase(ctx context.Context, db string) (DatabaseRecord, error)
	ListTables(ctx context.Context, db string) ([]string, error)
	GetTable(ctx context.Context, db, table string) (TableRecord, error)
	TableExists(ctx context.Context, db, table string) (bool, error)
	ListFunctions(ctx context.Context, db string) ([]FunctionRecord, error)
	GetFunction(ctx context.Context, db, fn string) (FunctionRecord, error)
	GetPartition(ctx context.Context, db, table string, spec PartitionSpec) (map[string]string, error)
}
