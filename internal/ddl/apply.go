package ddl

import (
	"fmt"

	"github.com/kasuganosora/catalogd/internal/catalog"
	"github.com/kasuganosora/catalogd/internal/catalog/cerr"
	"github.com/kasuganosora/catalogd/internal/syncddl"
)

// Apply drives stmt against reg, returning the updated (U) and removed (R)
// record sets a SYNC_DDL barrier wait needs (§4.7). defaultDB names the
// session's current database for statements that don't qualify one.
func Apply(reg *catalog.Registry, stmt Statement, defaultDB string) (updated, removed []syncddl.Record, err error) {
	db := stmt.Database
	if db == "" {
		db = defaultDB
	}

	switch stmt.Type {
	case TypeCreateDatabase:
		e, err := reg.Add(stmt.Database, catalog.DatabasePayload{Name: stmt.Database})
		if err != nil {
			if stmt.IfNotExist && cerr.Is(err, cerr.KindConflict) {
				return nil, nil, nil
			}
			return nil, nil, err
		}
		return []syncddl.Record{{Key: e.Key, Version: e.Version}}, nil, nil

	case TypeDropDatabase:
		tombstones, err := reg.RemoveDatabase(stmt.Database)
		if err != nil {
			if stmt.IfExists && cerr.Is(err, cerr.KindNotFound) {
				return nil, nil, nil
			}
			return nil, nil, err
		}
		return nil, tombstonesToRecords(tombstones), nil

	case TypeCreateTable:
		name := scopedName(db, stmt.Name)
		payload := catalog.TablePayload{Database: db, Table: stmt.Name, Columns: stmt.Columns}
		e, err := reg.AddLoaded(name, payload)
		if err != nil {
			if stmt.IfNotExist && cerr.Is(err, cerr.KindConflict) {
				return nil, nil, nil
			}
			return nil, nil, err
		}
		return []syncddl.Record{{Key: e.Key, Version: e.Version}}, nil, nil

	case TypeDropTable:
		key := catalog.NewKey(catalog.KindTable, scopedName(db, stmt.Name))
		_, t, ok := reg.Remove(key)
		if !ok {
			if stmt.IfExists {
				return nil, nil, nil
			}
			return nil, nil, cerr.NotFound("table", key.Name)
		}
		return nil, []syncddl.Record{{Key: t.Key, Version: t.Version}}, nil

	case TypeRenameTable:
		oldKey := catalog.NewKey(catalog.KindTable, scopedName(db, stmt.Name))
		newKey := catalog.NewKey(catalog.KindTable, scopedName(db, stmt.NewName))
		old, created, err := reg.Rename(oldKey, newKey, catalog.TablePayload{Database: db, Table: stmt.NewName})
		if err != nil {
			return nil, nil, err
		}
		return []syncddl.Record{{Key: created.Key, Version: created.Version}},
			[]syncddl.Record{{Key: old.Key, Version: old.Version}}, nil

	case TypeCreateView:
		name := scopedName(db, stmt.Name)
		payload := catalog.TablePayload{Database: db, Table: stmt.Name, IsView: true, Columns: stmt.Columns, ViewSQL: stmt.ViewSQL}
		e, err := reg.AddLoaded(name, payload)
		if err != nil {
			return nil, nil, err
		}
		return []syncddl.Record{{Key: e.Key, Version: e.Version}}, nil, nil

	case TypeDropView:
		key := catalog.NewKey(catalog.KindView, scopedName(db, stmt.Name))
		_, t, ok := reg.Remove(key)
		if !ok {
			if stmt.IfExists {
				return nil, nil, nil
			}
			return nil, nil, cerr.NotFound("view", key.Name)
		}
		return nil, []syncddl.Record{{Key: t.Key, Version: t.Version}}, nil

	case TypeCreateFunction:
		name := scopedName(db, stmt.Name)
		e, err := reg.AddLoaded(name, catalog.FunctionPayload{Database: db, Name: stmt.Name, Sig: stmt.Sig})
		if err != nil {
			return nil, nil, err
		}
		return []syncddl.Record{{Key: e.Key, Version: e.Version}}, nil, nil

	case TypeDropFunction:
		key := catalog.NewKey(catalog.KindFunction, scopedName(db, stmt.Name))
		_, t, ok := reg.Remove(key)
		if !ok {
			if stmt.IfExists {
				return nil, nil, nil
			}
			return nil, nil, cerr.NotFound("function", key.Name)
		}
		return nil, []syncddl.Record{{Key: t.Key, Version: t.Version}}, nil

	default:
		return nil, nil, fmt.Errorf("ddl: unsupported statement type %q", stmt.Type)
	}
}

func scopedName(db, name string) string { return db + "." + name }

func tombstonesToRecords(tombstones []catalog.Tombstone) []syncddl.Record {
	out := make([]syncddl.Record, 0, len(tombstones))
	for _, t := range tombstones {
		out = append(out, syncddl.Record{Key: t.Key, Version: t.Version})
	}
	return out
}
