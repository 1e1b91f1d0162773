// internal/app/system/reqschema/reqschema.go
package reqschema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dalemusser/mukhalis/internal/domain/models"
	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON Schema for validating request bodies.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// Compile parses a JSON Schema document given as a Go value (map or struct).
func Compile(name string, doc any) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// Validate checks a raw JSON body. It returns the list of problems, empty
// when the body is valid, or an error when the body is not JSON at all.
func (s *Schema) Validate(body []byte) ([]string, error) {
	res, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", s.name, err)
	}
	if res.Valid() {
		return nil, nil
	}
	problems := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		problems = append(problems, describe(e))
	}
	return problems, nil
}

func describe(e gojsonschema.ResultError) string {
	field := e.Field()
	if field == "(root)" {
		return e.Description()
	}
	return field + ": " + e.Description()
}

var (
	broadcastOnce sync.Once
	broadcast     *Schema
	broadcastErr  error
)

// AdminBroadcast returns the schema for POST /api/admin/notifications.
func AdminBroadcast() (*Schema, error) {
	broadcastOnce.Do(func() {
		broadcast, broadcastErr = Compile("admin-broadcast", adminBroadcastDoc())
	})
	return broadcast, broadcastErr
}

func adminBroadcastDoc() map[string]any {
	types := make([]any, 0, len(models.NotificationTypes))
	for _, t := range models.NotificationTypes {
		types = append(types, string(t))
	}
	localized := map[string]any{
		"type":     "object",
		"required": []any{"ar"},
		"properties": map[string]any{
			"ar": map[string]any{"type": "string", "minLength": 1, "maxLength": 500},
			"en": map[string]any{"type": "string", "maxLength": 500},
		},
	}
	return map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": []any{"title", "message", "type", "targetUsers"},
		"properties": map[string]any{
			"title":       localized,
			"message":     localized,
			"type":        map[string]any{"type": "string", "enum": types},
			"targetUsers": map[string]any{"type": "string", "enum": []any{"all", "role", "individuals"}},
			"roles": map[string]any{
				"type":        "array",
				"uniqueItems": true,
				"items": map[string]any{
					"type": "string",
					"enum": []any{models.RoleIndividual, models.RoleCompany, models.RoleAdmin, models.RoleModerator},
				},
			},
			"userIds": map[string]any{
				"type":     "array",
				"maxItems": 1000,
				"items":    map[string]any{"type": "string", "pattern": "^[0-9a-fA-F]{24}$"},
			},
			"data": map[string]any{"type": "object"},
		},
		"allOf": []any{
			map[string]any{
				"if":   map[string]any{"properties": map[string]any{"targetUsers": map[string]any{"const": "role"}}},
				"then": map[string]any{"required": []any{"roles"}, "properties": map[string]any{"roles": map[string]any{"minItems": 1}}},
			},
			map[string]any{
				"if":   map[string]any{"properties": map[string]any{"targetUsers": map[string]any{"const": "individuals"}}},
				"then": map[string]any{"required": []any{"userIds"}, "properties": map[string]any{"userIds": map[string]any{"minItems": 1}}},
			},
		},
	}
}

// Join renders problems for a single-line log field.
func Join(problems []string) string { return strings.Join(problems, "; ") }
