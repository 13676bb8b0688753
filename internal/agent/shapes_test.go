package agent

import (
	"testing"

	"github.com/soyeahso/cupid/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionsStableOrder(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, ShapeAddressUser, defs[0].Name)
	assert.Equal(t, ShapeDeliverIdeas, defs[1].Name)
	assert.Contains(t, defs[0].Description, "you want to address the user")
	assert.Contains(t, defs[1].Description, "you are ready to give your ideas for a valentine note")
}

func TestDefinitionsSchemas(t *testing.T) {
	defs := Definitions()

	addr := defs[0].Parameters
	assert.Equal(t, "object", addr["type"])
	assert.Equal(t, false, addr["additionalProperties"])
	assert.Equal(t, []string{"message"}, addr["required"])

	ideas := defs[1].Parameters
	assert.Equal(t, []string{"epilogue", "ideas", "prologue"}, ideas["required"])
	props := ideas["properties"].(map[string]any)
	list := props["ideas"].(map[string]any)
	assert.Equal(t, "array", list["type"])
	assert.Equal(t, "Three varied ideas for valentine note", list["description"])
	item := list["items"].(map[string]any)
	assert.Equal(t, []string{"note", "signature"}, item["required"])
}

func TestDecodeIntentAddressUser(t *testing.T) {
	intent, err := DecodeIntent(llm.ToolCall{Name: ShapeAddressUser, Input: `{"message":"Who's the lucky one?"}`})
	require.NoError(t, err)
	assert.Equal(t, AddressUser{Message: "Who's the lucky one?"}, intent)
	assert.Equal(t, ShapeAddressUser, intent.Shape())
}

func TestDecodeIntentDeliverIdeas(t *testing.T) {
	intent, err := DecodeIntent(llm.ToolCall{
		Name:  ShapeDeliverIdeas,
		Input: `{"prologue":"Here you go","ideas":[{"note":"Roses","signature":"Me"},{"note":"Violets","signature":"You"}],"epilogue":"Good luck"}`,
	})
	require.NoError(t, err)
	d, ok := intent.(DeliverIdeas)
	require.True(t, ok)
	assert.Len(t, d.Ideas, 2)
	assert.Equal(t, "Here you go", d.Prologue)
	assert.Equal(t, "Good luck", d.Epilogue)
}

func TestDecodeIntentAcceptsAnyIdeaCount(t *testing.T) {
	intent, err := DecodeIntent(llm.ToolCall{
		Name:  ShapeDeliverIdeas,
		Input: `{"prologue":"p","ideas":[{"note":"a","signature":"b"}],"epilogue":"e"}`,
	})
	require.NoError(t, err)
	assert.Len(t, intent.(DeliverIdeas).Ideas, 1)
}

func TestDecodeIntentErrors(t *testing.T) {
	tests := []struct {
		name string
		call llm.ToolCall
	}{
		{"unknown shape", llm.ToolCall{Name: "write_poem", Input: `{}`}},
		{"not json", llm.ToolCall{Name: ShapeAddressUser, Input: `{message`}},
		{"empty input", llm.ToolCall{Name: ShapeAddressUser}},
		{"missing field", llm.ToolCall{Name: ShapeDeliverIdeas, Input: `{"prologue":"p","ideas":[]}`}},
		{"wrong type", llm.ToolCall{Name: ShapeAddressUser, Input: `{"message":42}`}},
		{"null message", llm.ToolCall{Name: ShapeAddressUser, Input: `{"message":null}`}},
		{"null ideas", llm.ToolCall{Name: ShapeDeliverIdeas, Input: `{"prologue":"p","ideas":null,"epilogue":"e"}`}},
		{"ideas not a list", llm.ToolCall{Name: ShapeDeliverIdeas, Input: `{"prologue":"p","ideas":"three","epilogue":"e"}`}},
		{"idea without signature", llm.ToolCall{Name: ShapeDeliverIdeas, Input: `{"prologue":"p","ideas":[{"note":"n"}],"epilogue":"e"}`}},
		{"arguments not an object", llm.ToolCall{Name: ShapeAddressUser, Input: `["hi"]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeIntent(tt.call)
			require.Error(t, err)
			assert.True(t, IsSchemaError(err), "got %T", err)
		})
	}
}

func TestDecodeIntentAcceptsWhatTheSchemaAllows(t *testing.T) {
	intent, err := DecodeIntent(llm.ToolCall{Name: ShapeAddressUser, Input: `{"message":""}`})
	require.NoError(t, err)
	assert.Equal(t, AddressUser{Message: ""}, intent)

	intent, err = DecodeIntent(llm.ToolCall{Name: ShapeAddressUser, Input: `{"message":"hi","mood":"sassy"}`})
	require.NoError(t, err)
	assert.Equal(t, AddressUser{Message: "hi"}, intent, "undeclared keys are dropped")

	intent, err = DecodeIntent(llm.ToolCall{
		Name:  ShapeDeliverIdeas,
		Input: `{"prologue":"","ideas":[{"note":"","signature":"s","tone":"warm"}],"epilogue":"","extra":1}`,
	})
	require.NoError(t, err)
	assert.Equal(t, DeliverIdeas{Ideas: []Idea{{Note: "", Signature: "s"}}}, intent)

	intent, err = DecodeIntent(llm.ToolCall{Name: ShapeDeliverIdeas, Input: `{"prologue":"p","ideas":[],"epilogue":"e"}`})
	require.NoError(t, err)
	assert.Empty(t, intent.(DeliverIdeas).Ideas)
}

func TestFormatIdea(t *testing.T) {
	got := FormatIdea(0, Idea{Note: "You stole my heart", Signature: "Your partner in crime"})
	assert.Equal(t, "1. **You stole my heart**\n        __- Your partner in crime__", got)
	assert.Equal(t, "3. **x**\n        __- y__", FormatIdea(2, Idea{Note: "x", Signature: "y"}))
}
