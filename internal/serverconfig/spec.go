package serverconfig

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ServerSpec is one parsed server-definition record. Fields not
// applicable to Type are left at their zero value.
type ServerSpec struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`

	// stdio
	Command json.RawMessage  `json:"command,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// sse / http / streamable_http
	BaseURL  string            `json:"base_url,omitempty"`
	Endpoint string            `json:"endpoint,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`

	ReadTimeoutSeconds  float64 `json:"read_timeout,omitempty"`
	PingSeconds         float64 `json:"ping,omitempty"`
	Retries             *int    `json:"retries,omitempty"`
	RetryBackoffSeconds float64 `json:"retry_backoff,omitempty"`
}

// Argv resolves the stdio "command" field, which may be a JSON string or
// a JSON array of strings. A string is split on whitespace: this client
// never invokes a shell, so a string containing shell metacharacters is
// passed through as literal argv elements rather than interpreted.
func (s ServerSpec) Argv() ([]string, error) {
	if len(s.Command) == 0 {
		return nil, fmt.Errorf("serverconfig: stdio entry %q has no command", s.Name)
	}
	var asArray []string
	if err := json.Unmarshal(s.Command, &asArray); err == nil {
		return asArray, nil
	}
	var asString string
	if err := json.Unmarshal(s.Command, &asString); err == nil {
		fields := strings.Fields(asString)
		if len(fields) == 0 {
			return nil, fmt.Errorf("serverconfig: stdio entry %q has an empty command string", s.Name)
		}
		return fields, nil
	}
	return nil, fmt.Errorf("serverconfig: stdio entry %q command must be a string or array of strings", s.Name)
}

// ParseDefinitionFile parses a server-definition document: either a single
// JSON object or a JSON array of objects. Entries with an unrecognized
// type are skipped with a warning, not an error.
func ParseDefinitionFile(data []byte, logger *slog.Logger) ([]ServerSpec, error) {
	if logger == nil {
		logger = slog.Default()
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	var raws []json.RawMessage
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("serverconfig: parsing server-definition array: %w", err)
		}
	} else {
		raws = []json.RawMessage{data}
	}

	var specs []ServerSpec
	for i, raw := range raws {
		var s ServerSpec
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("serverconfig: parsing server-definition entry %d: %w", i, err)
		}
		switch s.Type {
		case "stdio", "sse", "http", "streamable_http":
			specs = append(specs, s)
		default:
			logger.Warn("serverconfig: skipping server-definition entry with unknown type",
				"component", "serverconfig", "index", i, "type", s.Type, "name", s.Name)
		}
	}
	return specs, nil
}
