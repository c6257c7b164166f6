package reasoning

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rowanhealth/clinsight/internal/models"
	"github.com/rowanhealth/clinsight/internal/retry"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

const moodSchemaJSON = `{
	"type": "object",
	"required": ["score", "confidence"],
	"properties": {
		"score": {"type": "number", "minimum": 0, "maximum": 10},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"indicators": {"type": "array", "items": {"type": "string"}},
		"rationale": {"type": "string"}
	}
}`

const themesSchemaJSON = `{
	"type": "object",
	"required": ["themes", "confidence"],
	"properties": {
		"themes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"salience": {"type": "number", "minimum": 0, "maximum": 1}
				}
			}
		},
		"techniques": {"type": "array", "items": {"type": "string"}},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

const breakthroughSchemaJSON = `{
	"type": "object",
	"required": ["events", "confidence"],
	"properties": {
		"events": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["description", "confidence"],
				"properties": {
					"description": {"type": "string", "minLength": 1},
					"quote": {"type": "string"},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1}
				}
			}
		},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

const synthesisSchemaJSON = `{
	"type": "object",
	"required": ["progress", "narrative", "skills", "engagement", "recommendations", "confidence"],
	"properties": {
		"progress": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["area", "direction"],
				"properties": {
					"area": {"type": "string", "minLength": 1},
					"direction": {"type": "string"},
					"evidence": {"type": "string"}
				}
			}
		},
		"narrative": {"type": "string", "minLength": 1},
		"skills": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["skill", "proficiency"],
				"properties": {
					"skill": {"type": "string", "minLength": 1},
					"proficiency": {"enum": ["beginner", "developing", "proficient"]}
				}
			}
		},
		"engagement": {
			"type": "object",
			"required": ["level"],
			"properties": {
				"level": {"type": "string", "minLength": 1},
				"notes": {"type": "string"}
			}
		},
		"recommendations": {"type": "array", "items": {"type": "string"}},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

var stageSchemas map[models.Stage]*jsonschema.Schema

func init() {
	stageSchemas = map[models.Stage]*jsonschema.Schema{
		models.StageMood:         mustCompileSchema(moodSchemaJSON, "mood.schema.json"),
		models.StageThemes:       mustCompileSchema(themesSchemaJSON, "themes.schema.json"),
		models.StageBreakthrough: mustCompileSchema(breakthroughSchemaJSON, "breakthrough.schema.json"),
		models.StageSynthesis:    mustCompileSchema(synthesisSchemaJSON, "synthesis.schema.json"),
	}
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// validatePayload checks a raw reasoning response against the stage's schema.
// Failures are classified as retryable validation errors.
func validatePayload(stage models.Stage, payload map[string]any) error {
	sch, ok := stageSchemas[stage]
	if !ok {
		return retry.Permanent(fmt.Errorf("no schema for stage %q", stage))
	}
	if err := sch.Validate(payload); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return retry.Validation(fmt.Errorf("stage %s response: %s", stage, ve.LocalizedError(defaultPrinter)))
		}
		return retry.Validation(fmt.Errorf("stage %s response: %v", stage, err))
	}
	return nil
}

// decodePayload decodes a schema-validated payload into the typed result.
// Decode failures after validation still count as validation failures.
func decodePayload(stage models.Stage, payload map[string]any, out any) error {
	if err := mapstructure.Decode(payload, out); err != nil {
		return retry.Validation(fmt.Errorf("decoding %s response: %w", stage, err))
	}
	return nil
}
