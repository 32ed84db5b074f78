// Copyright (c) Microsoft. All rights reserved.

package hosting

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

func TestInputMessages(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		msgs, err := inputMessages(json.RawMessage(`"hello"`))
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, af.RoleUser, msgs[0].Role)
		assert.Equal(t, "hello", msgs[0].Text())
	})

	t.Run("items", func(t *testing.T) {
		msgs, err := inputMessages(json.RawMessage(`[
			{"type":"message","role":"developer","content":"be brief"},
			{"role":"user","content":[{"type":"input_text","text":"part one "},{"type":"input_text","text":"part two"}]}
		]`))
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, af.RoleSystem, msgs[0].Role)
		assert.Equal(t, "part one part two", msgs[1].Text())
	})

	t.Run("approval response", func(t *testing.T) {
		msgs, err := inputMessages(json.RawMessage(`[
			{"type":"mcp_approval_response","approval_request_id":"call_1","approve":false,"reason":"no"}
		]`))
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		resp, ok := msgs[0].Contents[0].(*af.ApprovalResponseContent)
		require.True(t, ok)
		assert.Equal(t, "call_1", resp.CallID)
		assert.False(t, resp.Approved)
		assert.Equal(t, "no", resp.Reason)
	})

	errorCases := map[string]string{
		"missing":       ``,
		"null":          `null`,
		"empty string":  `""`,
		"empty array":   `[]`,
		"number":        `42`,
		"bad role":      `[{"role":"tool","content":"x"}]`,
		"bad part":      `[{"role":"user","content":[{"type":"input_image","text":""}]}]`,
		"bad type":      `[{"type":"function_call_output"}]`,
		"no request id": `[{"type":"mcp_approval_response","approve":true}]`,
	}
	for name, raw := range errorCases {
		t.Run(name, func(t *testing.T) {
			_, err := inputMessages(json.RawMessage(raw))
			assert.Error(t, err)
		})
	}
}

func TestConversationID(t *testing.T) {
	id, err := conversationID(nil)
	require.NoError(t, err)
	assert.Empty(t, id)

	id, err = conversationID(json.RawMessage(`"conv_1"`))
	require.NoError(t, err)
	assert.Equal(t, "conv_1", id)

	id, err = conversationID(json.RawMessage(`{"id":"conv_2"}`))
	require.NoError(t, err)
	assert.Equal(t, "conv_2", id)

	_, err = conversationID(json.RawMessage(`[1]`))
	assert.Error(t, err)
}

func TestOutputItems(t *testing.T) {
	researcher := af.NewAssistantMessage("findings")
	researcher.AuthorName = "researcher"

	items := outputItems([]af.Message{
		{Role: af.RoleAssistant, Contents: af.Contents{
			&af.FunctionCallContent{CallID: "call_1", Name: "get_weather", Arguments: `{}`},
		}},
		{Role: af.RoleAssistant, Contents: af.Contents{
			&af.ApprovalRequestContent{CallID: "call_1", Name: "get_weather", Arguments: `{"location":"Oslo"}`},
		}},
		researcher,
	}, "WeatherAgent")

	require.Len(t, items, 2)
	assert.Equal(t, "mcp_approval_request", items[0].Type)
	assert.Equal(t, "call_1", items[0].ID)
	assert.Equal(t, "WeatherAgent", items[0].ServerLabel)

	assert.Equal(t, "message", items[1].Type)
	assert.True(t, strings.HasPrefix(items[1].ID, "msg_"))
	assert.Equal(t, "researcher", items[1].AuthorName)
	require.Len(t, items[1].Content, 1)
	assert.Equal(t, "output_text", items[1].Content[0].Type)
	assert.Equal(t, "findings", items[1].Content[0].Text)
}

func TestNewID(t *testing.T) {
	id := newID("conv_")
	assert.True(t, strings.HasPrefix(id, "conv_"))
	assert.Len(t, id, len("conv_")+32)
	assert.NotEqual(t, id, newID("conv_"))
}
