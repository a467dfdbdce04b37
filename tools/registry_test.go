package tools

import (
	"reflect"
	"testing"
)

func TestRegistryRegisterDuplicate(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(&fakeTool{name: "dup"}); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}
	if err := registry.Register(&fakeTool{name: "dup"}); err == nil {
		t.Fatal("expected error registering duplicate tool")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	registry := newTestRegistry(t,
		&fakeTool{name: "zeta"},
		&fakeTool{name: "alpha"},
		&fakeTool{name: "mid"},
	)

	want := []string{"alpha", "mid", "zeta"}
	if got := registry.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestWithDefaults(t *testing.T) {
	registry, err := WithDefaults()
	if err != nil {
		t.Fatalf("WithDefaults() failed: %v", err)
	}

	for _, name := range []string{"read_file", "write_file", "list_dir", "web_fetch"} {
		if !registry.Has(name) {
			t.Errorf("expected default tool %q to be registered", name)
		}
	}
}

func TestMetadataDefinition(t *testing.T) {
	meta := ToolMetadata{
		Name:        "read_file",
		Description: "Read a file",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "File path", Required: true},
			{Name: "encoding", ParamType: "string", Description: "Text encoding", Required: false},
		},
	}

	def := meta.Definition()

	if def.Name != "read_file" || def.Description != "Read a file" {
		t.Errorf("unexpected definition header: %+v", def)
	}
	if def.Parameters["type"] != "object" {
		t.Errorf("expected object schema, got %v", def.Parameters["type"])
	}

	props, ok := def.Parameters["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %T", def.Parameters["properties"])
	}
	pathProp, ok := props["path"].(map[string]any)
	if !ok {
		t.Fatalf("expected path property, got %v", props)
	}
	if pathProp["type"] != "string" || pathProp["description"] != "File path" {
		t.Errorf("unexpected path property: %v", pathProp)
	}

	required, ok := def.Parameters["required"].([]string)
	if !ok {
		t.Fatalf("expected required list, got %T", def.Parameters["required"])
	}
	if !reflect.DeepEqual(required, []string{"path"}) {
		t.Errorf("required = %v, want [path]", required)
	}
}

func TestMetadataDefinitionNoRequired(t *testing.T) {
	meta := ToolMetadata{
		Name:        "list_all",
		Description: "List everything",
		Parameters: []ToolParameter{
			{Name: "filter", ParamType: "string", Description: "Optional filter", Required: false},
		},
	}

	def := meta.Definition()
	if _, present := def.Parameters["required"]; present {
		t.Error("expected no required key when all parameters are optional")
	}
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	registry := newTestRegistry(t,
		&fakeTool{name: "zeta"},
		&fakeTool{name: "alpha"},
	)

	defs := registry.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Name != "alpha" || defs[1].Name != "zeta" {
		t.Errorf("definitions not sorted: %s, %s", defs[0].Name, defs[1].Name)
	}
}
