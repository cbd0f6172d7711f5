package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/kasuganosora/catalogd/internal/metastore"
)

// Store is a metastore.Client backed by SQLite through GORM.
type Store struct {
	db *gorm.DB
	d  *Dialector
}

// Open opens (and migrates) a reference metastore at dsn.
func Open(dsn string) (*Store, error) {
	dialector := newDialector(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("gormstore: open: %w", err)
	}
	if err := db.AutoMigrate(&databaseModel{}, &tableModel{}, &functionModel{}, &partitionModel{}); err != nil {
		return nil, fmt.Errorf("gormstore: migrate: %w", err)
	}
	return &Store{db: db, d: dialector}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.d.Close() }

// --- seeding (administrative, not part of metastore.Client) ----------------

// PutDatabase upserts a database definition.
func (s *Store) PutDatabase(ctx context.Context, rec metastore.DatabaseRecord) error {
	m := databaseModel{Name: rec.Name, Comment: rec.Comment}
	return s.db.WithContext(ctx).Save(&m).Error
}

// PutTable upserts a table/view definition.
func (s *Store) PutTable(ctx context.Context, rec metastore.TableRecord) error {
	m := tableModel{
		Database:   rec.Database,
		Name:       rec.Name,
		IsView:     rec.IsView,
		ViewSQL:    rec.ViewSQL,
		ColumnsCSV: strings.Join(rec.Columns, ","),
	}
	return s.db.WithContext(ctx).Save(&m).Error
}

// PutFunction upserts a function definition.
func (s *Store) PutFunction(ctx context.Context, rec metastore.FunctionRecord) error {
	m := functionModel{Database: rec.Database, Name: rec.Name, Signature: rec.Signature}
	return s.db.WithContext(ctx).Save(&m).Error
}

// PutPartition upserts a partition's property bag.
func (s *Store) PutPartition(ctx context.Context, db, table string, spec metastore.PartitionSpec, props map[string]string) error {
	data, err := json.Marshal(props)
	if err != nil {
		return err
	}
	m := partitionModel{Database: db, TableName: table, SpecKey: specKey(spec), PropsJSON: string(data)}
	return s.db.WithContext(ctx).Save(&m).Error
}

// --- metastore.Client --------------------------------------------------

func (s *Store) ListDatabases(ctx context.Context) ([]metastore.DatabaseRecord, error) {
	var rows []databaseModel
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]metastore.DatabaseRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, metastore.DatabaseRecord{Name: r.Name, Comment: r.Comment})
	}
	return out, nil
}

func (s *Store) GetDatabase(ctx context.Context, db string) (metastore.DatabaseRecord, error) {
	var row databaseModel
	err := s.db.WithContext(ctx).Where("name = ?", db).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return metastore.DatabaseRecord{}, fmt.Errorf("gormstore: database %q not found", db)
	}
	if err != nil {
		return metastore.DatabaseRecord{}, err
	}
	return metastore.DatabaseRecord{Name: row.Name, Comment: row.Comment}, nil
}

func (s *Store) ListTables(ctx context.Context, db string) ([]string, error) {
	var rows []tableModel
	if err := s.db.WithContext(ctx).Where("database = ?", db).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Name)
	}
	return out, nil
}

func (s *Store) GetTable(ctx context.Context, db, table string) (metastore.TableRecord, error) {
	var row tableModel
	err := s.db.WithContext(ctx).Where("database = ? AND name = ?", db, table).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return metastore.TableRecord{}, fmt.Errorf("gormstore: table %s.%s not found", db, table)
	}
	if err != nil {
		return metastore.TableRecord{}, err
	}
	var cols []string
	if row.ColumnsCSV != "" {
		cols = strings.Split(row.ColumnsCSV, ",")
	}
	return metastore.TableRecord{
		Database: row.Database,
		Name:     row.Name,
		IsView:   row.IsView,
		ViewSQL:  row.ViewSQL,
		Columns:  cols,
	}, nil
}

func (s *Store) TableExists(ctx context.Context, db, table string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&tableModel{}).Where("database = ? AND name = ?", db, table).Count(&count).Error
	return count > 0, err
}

func (s *Store) ListFunctions(ctx context.Context, db string) ([]metastore.FunctionRecord, error) {
	var rows []functionModel
	if err := s.db.WithContext(ctx).Where("database = ?", db).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]metastore.FunctionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, metastore.FunctionRecord{Database: r.Database, Name: r.Name, Signature: r.Signature})
	}
	return out, nil
}

func (s *Store) GetFunction(ctx context.Context, db, fn string) (metastore.FunctionRecord, error) {
	var row functionModel
	err := s.db.WithContext(ctx).Where("database = ? AND name = ?", db, fn).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return metastore.FunctionRecord{}, fmt.Errorf("gormstore: function %s.%s not found", db, fn)
	}
	if err != nil {
		return metastore.FunctionRecord{}, err
	}
	return metastore.FunctionRecord{Database: row.Database, Name: row.Name, Signature: row.Signature}, nil
}

func (s *Store) GetPartition(ctx context.Context, db, table string, spec metastore.PartitionSpec) (map[string]string, error) {
	var row partitionModel
	err := s.db.WithContext(ctx).
		Where("database = ? AND table_name = ? AND spec_key = ?", db, table, specKey(spec)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("gormstore: partition %s.%s[%s] not found", db, table, specKey(spec))
	}
	if err != nil {
		return nil, err
	}
	var props map[string]string
	if err := json.Unmarshal([]byte(row.PropsJSON), &props); err != nil {
		return nil, err
	}
	return props, nil
}

// specKey canonicalizes a PartitionSpec into a stable, sorted string so
// equivalent specs look up the same row regardless of map iteration order.
func specKey(spec metastore.PartitionSpec) string {
	keys := make([]string, 0, len(spec))
	for k := range spec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+spec[k])
	}
	return strings.Join(parts, ",")
}
