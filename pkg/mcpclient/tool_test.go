package mcpclient

import (
	"encoding/json"
	"testing"
)

func TestAsFunctionSchema(t *testing.T) {
	t.Parallel()

	tool := Tool{
		Name:        "echo",
		Description: "echoes its input",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"msg": map[string]any{"type": "string"},
			},
		},
		ServerName: "a",
	}

	fs := tool.AsFunctionSchema()
	if fs.Name != "echo" || fs.Description != "echoes its input" {
		t.Fatalf("unexpected projection: %+v", fs)
	}

	var params map[string]any
	if err := json.Unmarshal(fs.Parameters, &params); err != nil {
		t.Fatalf("unmarshal parameters: %v", err)
	}
	if params["type"] != "object" {
		t.Errorf("parameters.type = %v, want object", params["type"])
	}
}

func TestAsFunctionSchemaEmptySchema(t *testing.T) {
	t.Parallel()

	fs := Tool{Name: "bare"}.AsFunctionSchema()
	if string(fs.Parameters) != "null" {
		t.Errorf("Parameters = %s, want null for a tool with no schema", fs.Parameters)
	}
}
