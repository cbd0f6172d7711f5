// Package ddl turns catalog-affecting SQL DDL text into Registry
// mutations, using the same TiDB parser the teacher wires for query SQL
// (pkg/parser/adapter.go), but projected down to the handful of statement
// shapes that change catalog objects rather than rows.
package ddl

import (
	"fmt"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
)

// Parser parses catalog DDL text into Statements.
type Parser struct {
	p *parser.Parser
}

// NewParser builds a Parser.
func NewParser() *Parser {
	return &Parser{p: parser.New()}
}

// Parse parses sql (one or more `;`-separated statements) into Statements.
// Non-DDL statements (SELECT/INSERT/... ) and DDL shapes this package does
// not drive the catalog from (e.g. CREATE INDEX) are silently omitted
// rather than erroring, since a caller may feed it a mixed batch.
func (p *Parser) Parse(sql string) ([]Statement, error) {
	nodes, _, err := p.p.Parse(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("ddl: parse failed: %w", err)
	}

	var out []Statement
	for _, node := range nodes {
		stmt, ok, err := convert(node)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, stmt)
		}
	}
	return out, nil
}

func convert(node ast.StmtNode) (Statement, bool, error) {
	switch n := node.(type) {
	case *ast.CreateDatabaseStmt:
		return Statement{
			Type:       TypeCreateDatabase,
			Database:   n.Name.O,
			IfNotExist: n.IfNotExists,
		}, true, nil

	case *ast.DropDatabaseStmt:
		return Statement{
			Type:     TypeDropDatabase,
			Database: n.Name.O,
			IfExists: n.IfExists,
		}, true, nil

	case *ast.CreateTableStmt:
		cols := make([]string, 0, len(n.Cols))
		for _, c := range n.Cols {
			cols = append(cols, c.Name.Name.O)
		}
		return Statement{
			Type:       TypeCreateTable,
			Database:   n.Table.Schema.O,
			Name:       n.Table.Name.O,
			Columns:    cols,
			IfNotExist: n.IfNotExists,
		}, true, nil

	case *ast.DropTableStmt:
		if len(n.Tables) == 0 {
			return Statement{}, false, nil
		}
		t := n.Tables[0]
		if n.IsView {
			return Statement{
				Type:     TypeDropView,
				Database: t.Schema.O,
				Name:     t.Name.O,
				IfExists: n.IfExists,
			}, true, nil
		}
		return Statement{
			Type:     TypeDropTable,
			Database: t.Schema.O,
			Name:     t.Name.O,
			IfExists: n.IfExists,
		}, true, nil

	case *ast.CreateViewStmt:
		cols := make([]string, 0, len(n.Cols))
		for _, c := range n.Cols {
			cols = append(cols, c.O)
		}
		var sql string
		if n.Select != nil {
			sql = n.Select.Text()
		}
		return Statement{
			Type:     TypeCreateView,
			Database: n.ViewName.Schema.O,
			Name:     n.ViewName.Name.O,
			Columns:  cols,
			ViewSQL:  sql,
		}, true, nil

	case *ast.RenameTableStmt:
		if len(n.TableToTables) == 0 {
			return Statement{}, false, nil
		}
		first := n.TableToTables[0]
		return Statement{
			Type:     TypeRenameTable,
			Database: first.OldTable.Schema.O,
			Name:     first.OldTable.Name.O,
			NewName:  first.NewTable.Name.O,
		}, true, nil

	case *ast.AlterTableStmt:
		for _, spec := range n.Specs {
			if spec.Tp == ast.AlterTableRenameTable && spec.NewTable != nil {
				return Statement{
					Type:     TypeRenameTable,
					Database: n.Table.Schema.O,
					Name:     n.Table.Name.O,
					NewName:  spec.NewTable.Name.O,
				}, true, nil
			}
		}
		return Statement{}, false, nil

	default:
		return Statement{}, false, nil
	}
}
