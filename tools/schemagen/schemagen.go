// Package main generates JSON schemas for the machine-readable report structs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/deadwood/pkg/analysis"
	"github.com/Sumatoshi-tech/deadwood/pkg/cleanup"
)

// Schema is the draft-07 subset the generator emits.
type Schema struct {
	Schema      string             `json:"$schema,omitempty"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Type        string             `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	Definitions map[string]*Schema `json:"definitions,omitempty"`
}

// target pairs an output file name with the struct it describes.
type target struct {
	name        string
	title       string
	description string
	value       any
}

func main() {
	outDir := flag.String("o", "docs/schemas", "directory to write schema files into")
	flag.Parse()

	targets := []target{
		{
			name:        "scan-result",
			title:       "Scan Result",
			description: "JSON schema for the output of deadwood scan --format json",
			value:       &analysis.Result{},
		},
		{
			name:        "cleanup-summary",
			title:       "Cleanup Summary",
			description: "JSON schema for the output of deadwood clean --format json",
			value:       &cleanup.Summary{},
		},
	}

	if err := run(*outDir, targets); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(outDir string, targets []target) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}

	for _, tgt := range targets {
		data, err := json.MarshalIndent(describe(tgt), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", tgt.name, err)
		}

		path := filepath.Join(outDir, tgt.name+".json")
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}

		fmt.Println("wrote", path)
	}

	return nil
}

// describe builds the root schema for one target.
func describe(tgt target) *Schema {
	t := reflect.TypeOf(tgt.value)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	defs := make(map[string]*Schema)
	root := objectSchema(t, defs)

	root.Schema = "https://json-schema.org/draft-07/schema#"
	root.Title = tgt.title
	root.Description = tgt.description

	if len(defs) > 0 {
		root.Definitions = defs
	}

	return root
}

// objectSchema renders a struct as an object of its json-tagged fields.
// Fields without omitempty are required.
func objectSchema(t reflect.Type, defs map[string]*Schema) *Schema {
	obj := &Schema{Type: "object", Properties: map[string]*Schema{}}

	for i := range t.NumField() {
		field := t.Field(i)

		name, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}

		obj.Properties[name] = schemaOf(field.Type, defs)

		if !strings.Contains(opts, "omitempty") {
			obj.Required = append(obj.Required, name)
		}
	}

	return obj
}

// schemaOf maps one Go type to its schema fragment. Named structs land
// in defs and are referenced; anonymous structs inline.
func schemaOf(t reflect.Type, defs map[string]*Schema) *Schema {
	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t == reflect.TypeOf(time.Duration(0)) {
			return &Schema{Type: "integer", Description: "Duration in nanoseconds"}
		}

		return &Schema{Type: "integer"}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: schemaOf(t.Elem(), defs)}
	case reflect.Map:
		return &Schema{
			Type:        "object",
			Description: fmt.Sprintf("Map with %s keys and %s values", t.Key().Kind(), t.Elem().Kind()),
		}
	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			return &Schema{Type: "string", Description: "ISO 8601 timestamp"}
		}

		if t.Name() == "" {
			return objectSchema(t, defs)
		}

		// Reserve the slot before recursing so self-references resolve.
		if _, done := defs[t.Name()]; !done {
			defs[t.Name()] = &Schema{}
			*defs[t.Name()] = *objectSchema(t, defs)
		}

		return &Schema{Ref: "#/definitions/" + t.Name()}
	case reflect.Pointer:
		return schemaOf(t.Elem(), defs)
	default:
		return &Schema{Type: "object"}
	}
}
