package wiki

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed wiki.schema.json
var schemaJSON []byte

const schemaURL = "mem://repowiki/wiki.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateSchema checks the JSON shape of s against the embedded schema.
func ValidateSchema(s Structure) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("failed to compile wiki schema: %w", err)
	}
	raw, err := json.Marshal(s.Clone())
	if err != nil {
		return fmt.Errorf("failed to marshal wiki for schema validation: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to normalize wiki for schema validation: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("wiki schema validation failed: %w", err)
	}
	return nil
}

// ExportJSON validates s and returns its indented JSON encoding.
func ExportJSON(s Structure) ([]byte, error) {
	if err := ValidateSchema(s); err != nil {
		return nil, err
	}
	return json.MarshalIndent(s.Clone(), "", "  ")
}

// Save writes wiki.xml and wiki.json into dir.
func Save(dir string, s Structure) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	x, err := MarshalXML(s)
	if err != nil {
		return fmt.Errorf("failed to encode wiki xml: %w", err)
	}
	j, err := ExportJSON(s)
	if err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, "wiki.xml"), x); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, "wiki.json"), j)
}

// Load reads the canonical tree written by Save.
func Load(dir string) (Structure, error) {
	data, err := os.ReadFile(filepath.Join(dir, "wiki.json"))
	if err != nil {
		return Structure{}, err
	}
	var s Structure
	if err := json.Unmarshal(data, &s); err != nil {
		return Structure{}, fmt.Errorf("failed to decode wiki.json: %w", err)
	}
	return s.Clone(), nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
