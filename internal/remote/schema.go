package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/expense-sync/internal/common"
)

const timestampPattern = `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`

var (
	expenseSchemaOnce sync.Once
	expenseCompiled   *jsonschema.Schema
	profileSchemaOnce sync.Once
	profileCompiled   *jsonschema.Schema
)

// BuildExpenseJSONSchema returns the JSON-Schema an outgoing expense row must satisfy.
func BuildExpenseJSONSchema() map[string]any {
	props := map[string]any{
		"id":         uuidProp(),
		"category":   map[string]any{"type": "string", "minLength": 1, "maxLength": 64},
		"amount":     map[string]any{"type": "string", "pattern": `^-?\d+(\.\d{1,2})?$`},
		"date":       timestampProp(),
		"icon_name":  map[string]any{"type": "string", "maxLength": 64},
		"user_id":    map[string]any{"type": "string", "minLength": 1},
		"created_at": timestampProp(),
		"updated_at": timestampProp(),
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"id", "category", "amount", "date", "user_id", "created_at", "updated_at"},
	}
}

// BuildProfileJSONSchema returns the JSON-Schema an outgoing profile row must satisfy.
func BuildProfileJSONSchema() map[string]any {
	nullableString := map[string]any{"type": []string{"string", "null"}}
	props := map[string]any{
		"id":                map[string]any{"type": "string", "minLength": 1},
		"email":             map[string]any{"type": "string", "pattern": `^[^@\s]+@[^@\s]+$`},
		"first_name":        map[string]any{"type": "string"},
		"last_name":         map[string]any{"type": "string"},
		"phone_number":      nullableString,
		"date_of_birth":     map[string]any{"type": []string{"string", "null"}, "pattern": timestampPattern},
		"profile_image_url": nullableString,
		"currency":          map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
		"timezone":          map[string]any{"type": "string"},
		"created_at":        timestampProp(),
		"updated_at":        timestampProp(),
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"id", "email", "currency", "created_at", "updated_at"},
	}
}

func uuidProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`,
	}
}

func timestampProp() map[string]any {
	return map[string]any{"type": "string", "pattern": timestampPattern}
}

func expenseSchema() *jsonschema.Schema {
	expenseSchemaOnce.Do(func() {
		expenseCompiled = mustCompile("expense.json", BuildExpenseJSONSchema())
	})
	return expenseCompiled
}

func profileSchema() *jsonschema.Schema {
	profileSchemaOnce.Do(func() {
		profileCompiled = mustCompile("profile.json", BuildProfileJSONSchema())
	})
	return profileCompiled
}

func mustCompile(name string, schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal schema %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// validatePayload rejects payloads the backend would refuse, before any round trip.
func validatePayload(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return common.ValidationFailed("payload is not valid JSON", err)
	}
	if err := schema.Validate(v); err != nil {
		return common.ValidationFailed("payload does not match schema", err)
	}
	return nil
}
