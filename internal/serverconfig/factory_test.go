package serverconfig

import (
	"encoding/json"
	"testing"
)

func TestBuildStdioTransport(t *testing.T) {
	t.Parallel()
	defaults, err := LoadDefaults()
	if err != nil {
		t.Fatalf("LoadDefaults: %v", err)
	}
	cmd, _ := json.Marshal([]string{"cat"})
	spec := ServerSpec{Type: "stdio", Name: "cat-server", Command: cmd}
	tr, err := Build(spec, defaults, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tr.Name() != "cat-server" {
		t.Fatalf("Name() = %q, want cat-server", tr.Name())
	}
}

func TestBuildHTTPTransport(t *testing.T) {
	t.Parallel()
	defaults, err := LoadDefaults()
	if err != nil {
		t.Fatalf("LoadDefaults: %v", err)
	}
	spec := ServerSpec{Type: "http", Name: "h", BaseURL: "https://example.test"}
	tr, err := Build(spec, defaults, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tr.Name() != "h" {
		t.Fatalf("Name() = %q, want h", tr.Name())
	}
}

func TestBuildRejectsUnknownType(t *testing.T) {
	t.Parallel()
	defaults, _ := LoadDefaults()
	_, err := Build(ServerSpec{Type: "telepathy"}, defaults, nil)
	if err == nil {
		t.Fatal("expected error for unknown server type")
	}
}

func TestBuildHTTPRequiresBaseURL(t *testing.T) {
	t.Parallel()
	defaults, _ := LoadDefaults()
	_, err := Build(ServerSpec{Type: "http", Name: "h"}, defaults, nil)
	if err == nil {
		t.Fatal("expected error for missing base_url")
	}
}
