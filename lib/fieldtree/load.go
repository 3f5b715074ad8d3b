// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package fieldtree

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// schemaFile is the on-disk JSONC shape of one schema. Comments in the
// file are for the humans maintaining the field lists.
type schemaFile struct {
	Properties []string               `json:"properties"`
	Nested     map[string]*schemaFile `json:"nestedProperties"`
}

// Load reads a JSONC file mapping payload names to schemas:
//
//	{
//	  // credentials synced with the vault service
//	  "password": {
//	    "properties": ["Password", "Notes"],
//	    "nestedProperties": {
//	      "SecurityQuestions": {"properties": ["Question", "Answer"]}
//	    }
//	  }
//	}
//
// CanCrypt predicates are behavioral and cannot be declared in a file;
// callers attach them after loading.
func Load(path string) (map[string]*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fieldtree: reading schema file: %w", err)
	}

	var parsed map[string]*schemaFile
	if err := json.Unmarshal(jsonc.ToJSON(raw), &parsed); err != nil {
		return nil, fmt.Errorf("fieldtree: parsing %s: %w", path, err)
	}

	schemas := make(map[string]*Schema, len(parsed))
	for name, file := range parsed {
		schemas[name] = fromFile(file)
	}
	return schemas, nil
}

func fromFile(file *schemaFile) *Schema {
	schema := &Schema{Properties: file.Properties}
	if len(file.Nested) > 0 {
		schema.Nested = make(map[string]*Schema, len(file.Nested))
		for field, child := range file.Nested {
			schema.Nested[field] = fromFile(child)
		}
	}
	return schema
}
