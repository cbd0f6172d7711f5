package ddl

// StatementType names the class of DDL statement Apply understands.
type StatementType string

const (
	TypeCreateDatabase StatementType = "CREATE_DATABASE"
	TypeDropDatabase   StatementType = "DROP_DATABASE"
	TypeCreateTable    StatementType = "CREATE_TABLE"
	TypeDropTable      StatementType = "DROP_TABLE"
	TypeRenameTable    StatementType = "RENAME_TABLE"
	TypeCreateView     StatementType = "CREATE_VIEW"
	TypeDropView       StatementType = "DROP_VIEW"
	// Parser.Parse never produces the two function types below; Statements
	// of these types are built directly by calling code.
	TypeCreateFunction StatementType = "CREATE_FUNCTION"
	TypeDropFunction   StatementType = "DROP_FUNCTION"
)

// Statement is the catalog-relevant projection of a parsed DDL AST node:
// just enough for Apply to drive Registry mutations, not a general SQL AST
// (query statements never reach this package).
type Statement struct {
	Type StatementType

	Database string // owning database, where applicable
	Name     string // object name being created/dropped/renamed
	NewName  string // RENAME TABLE target name

	Columns []string // CREATE TABLE/VIEW column names
	ViewSQL string    // CREATE VIEW ... AS <select>
	Sig     string    // CREATE FUNCTION signature

	IfExists   bool
	IfNotExist bool
}
