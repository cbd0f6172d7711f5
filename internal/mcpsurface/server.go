// Package mcpsurface exposes a read-only view of the catalog over MCP
// (Model Context Protocol), so an MCP-speaking agent can introspect live
// catalog state without a SQL session. Tool registration follows the
// teacher's server/mcp/server.go shape: one mcpserver.NewMCPServer, a
// handful of mcp.NewTool declarations, each wired to a ToolDeps method.
package mcpsurface

import (
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kasuganosora/catalogd/internal/catalog"
)

// Server is the read-only MCP surface over a catalog.Registry.
type Server struct {
	Registry *catalog.Registry
	Host     string
	Port     int
	Logger   *log.Logger
}

// New builds a Server. Logger defaults to the registry's configured logger.
func New(reg *catalog.Registry, host string, port int) *Server {
	return &Server{Registry: reg, Host: host, Port: port, Logger: reg.Config().Logger}
}

// Start starts the MCP server (blocking), serving Streamable HTTP at /mcp.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

	deps := &ToolDeps{Registry: s.Registry}

	mcpSrv := mcpserver.NewMCPServer(
		"catalogd",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	listDBTool := mcp.NewTool("list_databases",
		mcp.WithDescription("List all databases known to the catalog"),
	)

	listTablesTool := mcp.NewTool("list_tables",
		mcp.WithDescription("List all tables and views in a database"),
		mcp.WithString("database", mcp.Description("The database name"), mcp.Required()),
	)

	describeTableTool := mcp.NewTool("describe_table",
		mcp.WithDescription("Get the loaded definition of a table or view, including columns"),
		mcp.WithString("database", mcp.Description("The database name"), mcp.Required()),
		mcp.WithString("table", mcp.Description("The table or view name"), mcp.Required()),
	)

	getDeltaTool := mcp.NewTool("get_delta",
		mcp.WithDescription("Get the set of objects changed and removed since a given catalog version"),
		mcp.WithString("from_version", mcp.Description("The version to compute the delta from (0 for a full snapshot)")),
	)

	mcpSrv.AddTool(listDBTool, deps.HandleListDatabases)
	mcpSrv.AddTool(listTablesTool, deps.HandleListTables)
	mcpSrv.AddTool(describeTableTool, deps.HandleDescribeTable)
	mcpSrv.AddTool(getDeltaTool, deps.HandleGetDelta)

	httpServer := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
	)

	s.Logger.Printf("[mcpsurface] listening on %s", addr)
	return httpServer.Start(addr)
}
