package httpapi

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const activitySchemaJSON = `{
	"type": "object",
	"properties": {
		"slug": {"type": "string", "maxLength": 256},
		"source": {"type": "string", "maxLength": 64},
		"correlationId": {"type": "string", "maxLength": 128}
	},
	"additionalProperties": false
}`

const settingsSchemaJSON = `{
	"type": "object",
	"properties": {
		"username": {"type": "string", "maxLength": 128},
		"dailyGoal": {"type": "integer", "minimum": 1, "maximum": 30},
		"requireDaily": {"type": "boolean"},
		"notifyOnComplete": {"type": "boolean"}
	},
	"required": ["username", "dailyGoal"],
	"additionalProperties": false
}`

const evaluateSchemaJSON = `{
	"type": "object",
	"properties": {
		"url": {"type": "string", "maxLength": 4096},
		"focused": {"type": "boolean"}
	},
	"required": ["url"],
	"additionalProperties": false
}`

var (
	activitySchema = mustCompileSchema("activity.json", activitySchemaJSON)
	settingsSchema = mustCompileSchema("settings.json", settingsSchemaJSON)
	evaluateSchema = mustCompileSchema("evaluate.json", evaluateSchemaJSON)
)

func mustCompileSchema(name, source string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(source)))
	if err != nil {
		panic(fmt.Sprintf("parse schema %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

// validateBody checks a raw JSON body against a schema before it is decoded
// into a typed request.
func validateBody(schema *jsonschema.Schema, body []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return err
	}
	return schema.Validate(doc)
}
