package mcpclient

import (
	"log/slog"
	"os"

	"github.com/jamesprial/mcp-client/internal/serverconfig"
)

// NewFromFile builds a Client from a server-definition file: process-wide
// defaults come from the MCP_CLIENT_* environment variables, and each
// recognized record in path becomes one registered server.
func NewFromFile(path string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	defaults, err := serverconfig.LoadDefaults()
	if err != nil {
		return nil, err
	}
	specs, err := serverconfig.ParseDefinitionFile(data, logger)
	if err != nil {
		return nil, err
	}

	cfg := Config{Logger: logger}
	for _, spec := range specs {
		t, err := serverconfig.Build(spec, defaults, logger)
		if err != nil {
			return nil, err
		}
		cfg.Servers = append(cfg.Servers, t)
	}
	return New(cfg), nil
}
