package mcpserver

import (
	"context"

	"github.com/ayanftw/commit-history/internal/logging"
	"github.com/ayanftw/commit-history/pkg/config"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
)

// Server wraps the MCP server and registers the history tools.
type Server struct {
	server *mcp.Server
	config *config.Config
	logger *logrus.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithConfig sets the configuration tool calls start from. Tool inputs
// override individual fields per call.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithLogger sets the logger for walk diagnostics. Stdout carries the
// protocol, so it must not write there.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a new MCP server with all history tools registered.
func NewServer(version string, opts ...Option) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "commit-history",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, logger: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	if s.config == nil {
		s.config = config.DefaultConfig()
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// registerTools adds the history tools to the server.
func (s *Server) registerTools() {
	// Complexity timeline, trends and events
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_history",
		Description: describeHistory(),
	}, s.handleAnalyzeHistory)

	// One file's history
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "trace_file",
		Description: describeTrace(),
	}, s.handleTraceFile)

	// Commits by day across repositories
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "commit_log",
		Description: describeCommitLog(),
	}, s.handleCommitLog)
}
