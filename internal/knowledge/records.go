package knowledge

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
)

// DocumentVersion is the schema version written by this build.
const DocumentVersion = 2

// Exception reasons.
const (
	ReasonManual = "manual"
	ReasonUndo   = "undo"
)

// Exception is a word that must never be corrected automatically.
type Exception struct {
	ID        string    `json:"id"`
	Word      string    `json:"word"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// ForcedConversion is a correction the user made by hand.
type ForcedConversion struct {
	ID                string    `json:"id"`
	Original          string    `json:"original"`
	Corrected         string    `json:"corrected"`
	Timestamp         time.Time `json:"timestamp"`
	Updated           time.Time `json:"updated"`
	ConfirmationCount int       `json:"confirmationCount"`
}

type exceptionsDocument struct {
	Version    int         `json:"version"`
	Exceptions []Exception `json:"exceptions"`
}

type forcedDocument struct {
	Version     int                `json:"version"`
	Conversions []ForcedConversion `json:"conversions"`
}

// Key normalises a word for case-insensitive lookups.
func Key(word string) string {
	return cases.Fold().String(strings.TrimSpace(word))
}

func newID() string {
	return uuid.NewString()
}

// ============================================================================
// Migration
// ============================================================================

// docKind selects the collection a migration step applies to.
type docKind int

const (
	kindExceptions docKind = iota
	kindForced
)

func (k docKind) String() string {
	if k == kindForced {
		return "conversions"
	}
	return "exceptions"
}

// migrateDocument upgrades a decoded document to DocumentVersion. Documents
// from newer builds are left as is; their unknown fields are ignored.
func migrateDocument(kind docKind, doc any, now time.Time) (any, []string, error) {
	var changes []string
	version := documentVersion(doc)
	for version < DocumentVersion {
		var err error
		switch version {
		case 1:
			doc, err = migrateV1ToV2(kind, doc, now)
			changes = append(changes, fmt.Sprintf("%s: v1 -> v2", kind))
		default:
			return nil, changes, fmt.Errorf("no migration from version %d", version)
		}
		if err != nil {
			return nil, changes, err
		}
		version++
	}
	return doc, changes, nil
}

// documentVersion treats a bare array as version 1.
func documentVersion(doc any) int {
	switch d := doc.(type) {
	case []any:
		return 1
	case map[string]any:
		if v, ok := d["version"].(float64); ok {
			return int(v)
		}
		return 1
	}
	return 0
}

// migrateV1ToV2 wraps the bare v1 array into an object, assigns ids, and
// renames the v1 "count" field to confirmationCount. Exceptions stored as
// plain strings become records.
func migrateV1ToV2(kind docKind, doc any, now time.Time) (any, error) {
	var items []any
	switch d := doc.(type) {
	case []any:
		items = d
	case map[string]any:
		items, _ = d[kind.String()].([]any)
	default:
		return nil, fmt.Errorf("unexpected document type %T", doc)
	}

	stamp := now.UTC().Format(time.RFC3339)
	out := make([]any, 0, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			s, isString := item.(string)
			if !isString || kind != kindExceptions {
				continue
			}
			rec = map[string]any{"word": s, "reason": ReasonManual}
		}
		if _, ok := rec["id"]; !ok {
			rec["id"] = newID()
		}
		switch ts := rec["timestamp"].(type) {
		case nil:
			rec["timestamp"] = stamp
		case float64:
			rec["timestamp"] = time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
		}
		if kind == kindForced {
			if c, ok := rec["count"]; ok {
				rec["confirmationCount"] = c
				delete(rec, "count")
			}
			if _, ok := rec["confirmationCount"]; !ok {
				rec["confirmationCount"] = float64(1)
			}
			if _, ok := rec["updated"]; !ok {
				rec["updated"] = rec["timestamp"]
			}
		} else if _, ok := rec["reason"]; !ok {
			rec["reason"] = ReasonManual
		}
		out = append(out, rec)
	}
	return map[string]any{"version": float64(2), kind.String(): out}, nil
}

// ============================================================================
// Schema validation
// ============================================================================

//go:embed data/exceptions.schema.json
var exceptionsSchemaJSON []byte

//go:embed data/forced.schema.json
var forcedSchemaJSON []byte

var (
	schemaOnce sync.Once
	schemas    map[docKind]*jsonschema.Schema
	schemaErr  error
)

func compileSchemas() (map[docKind]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiled := map[docKind]*jsonschema.Schema{}
		for kind, src := range map[docKind][]byte{
			kindExceptions: exceptionsSchemaJSON,
			kindForced:     forcedSchemaJSON,
		} {
			name := kind.String() + ".schema.json"
			compiler := jsonschema.NewCompiler()
			if err := compiler.AddResource(name, bytes.NewReader(src)); err != nil {
				schemaErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
			s, err := compiler.Compile(name)
			if err != nil {
				schemaErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			compiled[kind] = s
		}
		schemas = compiled
	})
	return schemas, schemaErr
}

func validateDocument(kind docKind, doc any) error {
	s, err := compileSchemas()
	if err != nil {
		return err
	}
	return s[kind].Validate(doc)
}

// decodeDocument parses, migrates and validates raw document bytes.
func decodeDocument(kind docKind, data []byte, now time.Time, out any) ([]string, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	doc, changes, err := migrateDocument(kind, doc, now)
	if err != nil {
		return changes, err
	}
	if err := validateDocument(kind, doc); err != nil {
		return changes, fmt.Errorf("schema: %w", err)
	}
	normalized, err := json.Marshal(doc)
	if err != nil {
		return changes, err
	}
	return changes, json.Unmarshal(normalized, out)
}
