package gormstore

// databaseModel is the gorm model backing metastore.DatabaseRecord.
type databaseModel struct {
	Name    string `gorm:"primaryKey"`
	Comment string
}

// tableModel is the gorm model backing metastore.TableRecord. Columns is
// stored as a comma-joined list rather than a normalized child table —
// the reference metastore only needs to round-trip names, not enforce a
// schema.
type tableModel struct {
	Database   string `gorm:"primaryKey"`
	Name       string `gorm:"primaryKey"`
	IsView     bool
	ViewSQL    string
	ColumnsCSV string
}

// functionModel is the gorm model backing metastore.FunctionRecord.
type functionModel struct {
	Database  string `gorm:"primaryKey"`
	Name      string `gorm:"primaryKey"`
	Signature string
}

// partitionModel stores one partition's key/value property bag, keyed by
// the partition spec canonicalized to a stable string.
type partitionModel struct {
	Database    string `gorm:"primaryKey"`
	TableName   string `gorm:"primaryKey"`
	SpecKey     string `gorm:"primaryKey"`
	PropsJSON   string
}
