package curriculum

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// submissionSchema checks the shape of a submission body. Names below the subject level
// are optional and may be null: nodes without one are skipped during ingestion, not
// rejected.
const submissionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["subjectName", "board", "grade"],
  "properties": {
    "subjectName": {"type": "string", "minLength": 1},
    "board": {"type": "string", "pattern": "^(?i)\\s*(cbse|icse|state)\\s*$"},
    "grade": {"type": "string", "minLength": 1},
    "chapters": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "chapterName": {"type": ["string", "null"]},
          "topics": {
            "type": ["array", "null"],
            "items": {
              "type": "object",
              "properties": {
                "topicName": {"type": ["string", "null"]},
                "subtopics": {
                  "type": ["array", "null"],
                  "items": {
                    "type": "object",
                    "properties": {
                      "subtopicName": {"type": ["string", "null"]},
                      "videos": {
                        "type": ["array", "null"],
                        "items": {"$ref": "#/definitions/video"}
                      }
                    }
                  }
                }
              }
            }
          }
        }
      }
    }
  },
  "definitions": {
    "video": {
      "type": "object",
      "properties": {
        "videoUrl": {"type": ["string", "null"]},
        "quiz": {
          "type": ["object", "null"],
          "properties": {
            "questions": {
              "type": ["array", "null"],
              "items": {"$ref": "#/definitions/question"}
            }
          }
        }
      }
    },
    "question": {
      "type": "object",
      "properties": {
        "que": {"type": ["string", "null"]},
        "correctAnswer": {"type": ["string", "null"]},
        "explanation": {"type": ["string", "null"]},
        "options": {
          "type": "object",
          "properties": {
            "A": {"type": "string"},
            "B": {"type": "string"},
            "C": {"type": "string"},
            "D": {"type": "string"}
          }
        }
      }
    }
  }
}`

// rootContext is how gojsonschema names the document root in error fields.
const rootContext = "(root)"

var compiledSubmissionSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(submissionSchema))
})

// ValidateSubmissionJSON checks a raw submission body against the submission schema.
// Shape problems are reported as a *ValidationError naming each offending field.
func ValidateSubmissionJSON(body []byte) error {
	schema, err := compiledSubmissionSchema()
	if err != nil {
		return fmt.Errorf("compile submission schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		// Not JSON at all.
		verr := &ValidationError{}
		verr.add("body", "must be a JSON object")
		return verr
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, re := range result.Errors() {
		verr.add(schemaField(re), re.Description())
	}
	return verr
}

// schemaField names the field a schema error is about. Missing required properties
// are reported against their parent, so the property name is appended.
func schemaField(re gojsonschema.ResultError) string {
	field := re.Field()
	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok {
			if field == rootContext || field == "" {
				return prop
			}
			return field + "." + prop
		}
	}
	if field == rootContext {
		return "body"
	}
	return strings.TrimPrefix(field, rootContext+".")
}
