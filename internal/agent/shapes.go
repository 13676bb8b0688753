package agent

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/soyeahso/cupid/internal/llm"
)

// Shape names as declared to the backend.
const (
	ShapeAddressUser  = "address_user"
	ShapeDeliverIdeas = "deliver_ideas"
)

// Intent is the backend's choice for one turn. The only implementations are
// AddressUser and DeliverIdeas.
type Intent interface {
	Shape() string
}

// AddressUser sends one message to the user.
type AddressUser struct {
	Message string `json:"message" jsonschema:"description=Message or question to the user"`
}

// Idea is one proposed valentine note.
type Idea struct {
	Note      string `json:"note" jsonschema:"description=text of the note"`
	Signature string `json:"signature" jsonschema:"description=signature under the note"`
}

// DeliverIdeas presents the final note ideas.
type DeliverIdeas struct {
	Ideas    []Idea `json:"ideas" jsonschema:"description=Three varied ideas for valentine note"`
	Prologue string `json:"prologue" jsonschema:"description=Prologue to the ideas"`
	Epilogue string `json:"epilogue" jsonschema:"description=Epilogue to the ideas"`
}

func (AddressUser) Shape() string  { return ShapeAddressUser }
func (DeliverIdeas) Shape() string { return ShapeDeliverIdeas }

// FormatIdea renders idea i (zero based) as a numbered Markdown line.
func FormatIdea(i int, idea Idea) string {
	return fmt.Sprintf("%d. **%s**\n        __- %s__", i+1, idea.Note, idea.Signature)
}

type shape struct {
	name        string
	description string
	schema      map[string]any
	decode      func([]byte) (Intent, error)
}

// shapes is the dispatch table, in the order offered to the backend.
var shapes = []shape{
	{
		name:        ShapeAddressUser,
		description: "Call this when you want to address the user.",
		schema:      llm.GenerateSchema[AddressUser](),
		decode: func(raw []byte) (Intent, error) {
			var v AddressUser
			err := json.Unmarshal(raw, &v)
			return v, err
		},
	},
	{
		name:        ShapeDeliverIdeas,
		description: "Call this when you are ready to give your ideas for a valentine note.",
		schema:      llm.GenerateSchema[DeliverIdeas](),
		decode: func(raw []byte) (Intent, error) {
			var v DeliverIdeas
			err := json.Unmarshal(raw, &v)
			return v, err
		},
	},
}

// Definitions returns the tool definitions for every shape, in a stable order.
func Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(shapes))
	for _, s := range shapes {
		defs = append(defs, llm.ToolDefinition{
			Name:        s.name,
			Description: s.description,
			Parameters:  s.schema,
		})
	}
	return defs
}

// DecodeIntent checks a tool call against its shape's schema and returns
// the typed intent. Required fields must be present and non-null at every
// level; keys the schema does not declare are ignored. Every failure is a
// SchemaValidationError.
func DecodeIntent(call llm.ToolCall) (Intent, error) {
	var s *shape
	for i := range shapes {
		if shapes[i].name == call.Name {
			s = &shapes[i]
			break
		}
	}
	if s == nil {
		return nil, &SchemaValidationError{Shape: call.Name, Err: fmt.Errorf("unknown shape")}
	}

	raw := []byte(call.Input)
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	if err := checkRequired(raw, s.schema, ""); err != nil {
		return nil, &SchemaValidationError{Shape: s.name, Err: err}
	}
	intent, err := s.decode(raw)
	if err != nil {
		return nil, &SchemaValidationError{Shape: s.name, Err: err}
	}
	return intent, nil
}

// checkRequired walks raw alongside schema and reports the first required
// field that is absent or null.
func checkRequired(raw json.RawMessage, schema map[string]any, path string) error {
	switch schema["type"] {
	case "object":
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return fmt.Errorf("%s: %w", fieldName(path), err)
		}
		if fields == nil {
			return fmt.Errorf("%s is null", fieldName(path))
		}
		props, _ := schema["properties"].(map[string]any)
		for _, name := range requiredNames(schema["required"]) {
			v, ok := fields[name]
			if !ok {
				return fmt.Errorf("missing required field %q", joinPath(path, name))
			}
			if isNull(v) {
				return fmt.Errorf("%s is null", joinPath(path, name))
			}
			if sub, ok := props[name].(map[string]any); ok {
				if err := checkRequired(v, sub, joinPath(path, name)); err != nil {
					return err
				}
			}
		}
	case "array":
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("%s: %w", fieldName(path), err)
		}
		sub, ok := schema["items"].(map[string]any)
		if !ok {
			return nil
		}
		for i, item := range items {
			if err := checkRequired(item, sub, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func requiredNames(v any) []string {
	switch names := v.(type) {
	case []string:
		return names
	case []any:
		out := make([]string, 0, len(names))
		for _, n := range names {
			if s, ok := n.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func fieldName(path string) string {
	if path == "" {
		return "arguments"
	}
	return path
}
