package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Submission payloads are schema-checked at the API boundary before any
// cryptographic work, so malformed requests never reach the ledger core.

const addressPattern = `^(0x)?[0-9a-fA-F]{40}$`
const signaturePattern = `^(0x)?[0-9a-fA-F]{130}$`

const endorsementSchema = `{
  "type": "object",
  "required": ["endorsement", "signature"],
  "properties": {
    "endorsement": {
      "type": "object",
      "required": ["timestamp", "from", "to", "graphId", "scores"],
      "properties": {
        "timestamp": {"type": "integer", "minimum": 0},
        "from": {"type": "string", "pattern": "` + addressPattern + `"},
        "to": {"type": "string", "pattern": "` + addressPattern + `"},
        "graphId": {"type": "string", "pattern": "` + addressPattern + `"},
        "scores": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["topicId", "score", "confidence"],
            "properties": {
              "topicId": {"type": "integer", "minimum": 0},
              "score": {"type": "integer", "minimum": -128, "maximum": 127},
              "confidence": {"type": "integer", "minimum": 0, "maximum": 255}
            }
          }
        }
      }
    },
    "signature": {"type": "string", "pattern": "` + signaturePattern + `"}
  }
}`

const nicknameSchema = `{
  "type": "object",
  "required": ["claim", "signature"],
  "properties": {
    "claim": {
      "type": "object",
      "required": ["account", "nickname", "timestamp"],
      "properties": {
        "account": {"type": "string", "pattern": "` + addressPattern + `"},
        "nickname": {"type": "string", "maxLength": 64},
        "timestamp": {"type": "integer", "minimum": 0}
      }
    },
    "signature": {"type": "string", "pattern": "` + signaturePattern + `"}
  }
}`

var (
	endorsementLoader = gojsonschema.NewStringLoader(endorsementSchema)
	nicknameLoader    = gojsonschema.NewStringLoader(nicknameSchema)
)

// ValidateEndorsementPayload checks a raw endorsement submission body.
func ValidateEndorsementPayload(payload []byte) error {
	return validate(endorsementLoader, payload)
}

// ValidateNicknamePayload checks a raw signed nickname claim body.
func ValidateNicknamePayload(payload []byte) error {
	return validate(nicknameLoader, payload)
}

func validate(schema gojsonschema.JSONLoader, payload []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		errStr := ""
		for _, e := range result.Errors() {
			errStr += e.String() + "; "
		}
		return fmt.Errorf("payload failed schema validation: %s", errStr)
	}
	return nil
}
