package mcpsurface

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kasuganosora/catalogd/internal/catalog"
)

// ToolDeps holds the shared dependency for every tool handler.
type ToolDeps struct {
	Registry *catalog.Registry
}

// HandleListDatabases lists every live database.
func (d *ToolDeps) HandleListDatabases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dbs := d.Registry.Databases()

	var sb strings.Builder
	sb.WriteString("Databases:\n")
	for _, e := range dbs {
		p := e.Payload.(catalog.DatabasePayload)
		sb.WriteString(fmt.Sprintf("- %s (v%d)\n", p.Name, e.Version))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleListTables lists every live table/view in a database.
func (d *ToolDeps) HandleListTables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	database := request.GetString("database", "")
	if database == "" {
		return mcp.NewToolResultError("database parameter is required"), nil
	}

	tables := d.Registry.Tables(database)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Tables in %s:\n", database))
	for _, e := range tables {
		p := e.Payload.(catalog.TablePayload)
		kind := "TABLE"
		if p.IsView {
			kind = "VIEW"
		}
		loaded := "shell"
		if e.Loaded {
			loaded = "loaded"
		}
		sb.WriteString(fmt.Sprintf("- %s [%s, %s, v%d]\n", p.Table, kind, loaded, e.Version))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleDescribeTable returns the loaded definition of one table or view.
func (d *ToolDeps) HandleDescribeTable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	database := request.GetString("database", "")
	table := request.GetString("table", "")
	if database == "" {
		return mcp.NewToolResultError("database parameter is required"), nil
	}
	if table == "" {
		return mcp.NewToolResultError("table parameter is required"), nil
	}

	key := catalog.NewKey(catalog.KindTable, database+"."+table)
	entry, ok := d.Registry.Get(key)
	if !ok {
		key = catalog.NewKey(catalog.KindView, database+"."+table)
		entry, ok = d.Registry.Get(key)
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%s.%s not found", database, table)), nil
	}

	p := entry.Payload.(catalog.TablePayload)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Table: %s.%s (version %d)\n", database, table, entry.Version))
	if !entry.Loaded {
		sb.WriteString("(not yet loaded from the metastore)\n")
		return mcp.NewToolResultText(sb.String()), nil
	}
	if p.IsView {
		sb.WriteString(fmt.Sprintf("view sql: %s\n", p.ViewSQL))
	}
	sb.WriteString("columns:\n")
	for _, c := range p.Columns {
		sb.WriteString(fmt.Sprintf("- %s\n", c))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetDelta reports the objects updated and removed since from_version,
// reading the registry's live state and delete log directly (§4.3) rather
// than driving a full delta.Builder run, since this surface is read-only
// and has no sink/codec to publish through.
func (d *ToolDeps) HandleGetDelta(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fromStr := request.GetString("from_version", "0")
	fromV, err := strconv.ParseUint(fromStr, 10, 64)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid from_version %q: %v", fromStr, err)), nil
	}

	toV := d.Registry.CurrentVersion()
	from := catalog.Version(fromV)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Delta from v%d to v%d:\n\nUpdated:\n", fromV, toV))
	for _, kind := range []catalog.ObjectKind{catalog.KindDatabase, catalog.KindTable, catalog.KindView,
		catalog.KindFunction, catalog.KindDataSource, catalog.KindHDFSCachePool, catalog.KindPrincipal} {
		for _, e := range d.snapshotKind(kind) {
			if e.Version > from && e.Version <= toV {
				sb.WriteString(fmt.Sprintf("- %s (v%d)\n", e.Key, e.Version))
			}
		}
	}

	sb.WriteString("\nRemoved:\n")
	for _, t := range d.Registry.Tombstones(from, toV) {
		sb.WriteString(fmt.Sprintf("- %s (v%d)\n", t.Key, t.Version))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// snapshotKind dispatches to the registry's public per-kind snapshot
// accessors; kinds scoped to a database (tables/functions) are gathered
// across every live database since get_delta has no database parameter.
func (d *ToolDeps) snapshotKind(kind catalog.ObjectKind) []*catalog.Entry {
	switch kind {
	case catalog.KindDatabase:
		return d.Registry.Databases()
	case catalog.KindDataSource:
		return d.Registry.DataSources()
	case catalog.KindHDFSCachePool:
		return d.Registry.CachePools()
	case catalog.KindPrincipal:
		return d.Registry.Principals()
	case catalog.KindTable, catalog.KindView:
		var out []*catalog.Entry
		for _, db := range d.Registry.Databases() {
			name := db.Payload.(catalog.DatabasePayload).Name
			for _, e := range d.Registry.Tables(name) {
				if e.Key.Kind == kind {
					out = append(out, e)
				}
			}
		}
		return out
	case catalog.KindFunction:
		var out []*catalog.Entry
		for _, db := range d.Registry.Databases() {
			name := db.Payload.(catalog.DatabasePayload).Name
			out = append(out, d.Registry.Functions(name)...)
		}
		return out
	default:
		return nil
	}
}
