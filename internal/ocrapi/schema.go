package ocrapi

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const jobResultSchemaJSON = `{
  "type": "object",
  "required": ["pages"],
  "properties": {
    "pages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["page_index", "width", "height", "items"],
        "properties": {
          "page_index": {"type": "integer", "minimum": 0},
          "width": {"type": "integer"},
          "height": {"type": "integer"},
          "items": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["text", "bbox", "confidence", "is_sensitive"],
              "properties": {
                "text": {"type": "string"},
                "bbox": {
                  "type": "object",
                  "required": ["x", "y"],
                  "properties": {
                    "x": {"type": "integer"},
                    "y": {"type": "integer"},
                    "w": {"type": "integer"},
                    "h": {"type": "integer"}
                  }
                },
                "confidence": {"type": "number", "minimum": 0, "maximum": 1},
                "is_sensitive": {"type": "boolean"},
                "masked_text": {"type": ["string", "null"]}
              }
            }
          }
        }
      }
    }
  }
}`

const jobListSchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "filename", "status", "created_at"],
    "properties": {
      "id": {"type": "string"},
      "filename": {"type": "string"},
      "lang": {"type": "string"},
      "status": {"type": "string"},
      "page_count": {"type": "integer", "minimum": 0},
      "created_at": {"type": "string"},
      "completed_at": {"type": ["string", "null"]}
    }
  }
}`

const statsSchemaJSON = `{
  "type": "object",
  "required": ["total_jobs", "completed_jobs", "failed_jobs", "processing_jobs"],
  "properties": {
    "total_jobs": {"type": "integer", "minimum": 0},
    "completed_jobs": {"type": "integer", "minimum": 0},
    "failed_jobs": {"type": "integer", "minimum": 0},
    "processing_jobs": {"type": "integer", "minimum": 0},
    "avg_processing_time": {"type": ["number", "null"]}
  }
}`

var (
	jobResultSchema = jsonschema.MustCompileString("job_result.json", jobResultSchemaJSON)
	jobListSchema   = jsonschema.MustCompileString("job_list.json", jobListSchemaJSON)
	statsSchema     = jsonschema.MustCompileString("stats.json", statsSchemaJSON)
)

// validateBody checks a response body against schema before it is decoded.
func validateBody(schema *jsonschema.Schema, body []byte) error {
	if schema == nil {
		return nil
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("failed to decode response for validation: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}
