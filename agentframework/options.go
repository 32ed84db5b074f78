// Copyright (c) Microsoft. All rights reserved.

package agentframework

import "maps"

// ToolChoice controls how the model selects tools.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// ChatOptions configures a single chat completion request.
// Pointer fields use nil to represent "unset" (use provider default).
type ChatOptions struct {
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	Stop           []string
	Seed           *int
	Tools          []Tool
	ToolChoice     ToolChoice
	Metadata       map[string]string
	User           string
	Instructions   string
	ConversationID string
}

// Clone returns a copy of o whose slices and maps can be modified without
// affecting o. A nil receiver yields empty options.
func (o *ChatOptions) Clone() *ChatOptions {
	if o == nil {
		return &ChatOptions{}
	}
	cp := *o
	cp.Stop = append([]string(nil), o.Stop...)
	cp.Tools = append([]Tool(nil), o.Tools...)
	cp.Metadata = maps.Clone(o.Metadata)
	return &cp
}

// MergeChatOptions produces a new ChatOptions by overlaying override values
// onto base. Nil or zero-value fields in override do not overwrite base.
// Tools are appended, metadata is merged (override keys win) and
// instructions are concatenated.
func MergeChatOptions(base, override *ChatOptions) *ChatOptions {
	merged := base.Clone()
	if override == nil {
		return merged
	}

	if override.Temperature != nil {
		merged.Temperature = override.Temperature
	}
	if override.TopP != nil {
		merged.TopP = override.TopP
	}
	if override.MaxTokens != nil {
		merged.MaxTokens = override.MaxTokens
	}
	if len(override.Stop) > 0 {
		merged.Stop = append([]string(nil), override.Stop...)
	}
	if override.Seed != nil {
		merged.Seed = override.Seed
	}
	if override.ToolChoice != "" {
		merged.ToolChoice = override.ToolChoice
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.ConversationID != "" {
		merged.ConversationID = override.ConversationID
	}
	if override.Instructions != "" {
		merged.Instructions = joinInstructions(merged.Instructions, override.Instructions)
	}
	merged.Tools = append(merged.Tools, override.Tools...)

	if len(override.Metadata) > 0 {
		if merged.Metadata == nil {
			merged.Metadata = make(map[string]string, len(override.Metadata))
		}
		maps.Copy(merged.Metadata, override.Metadata)
	}
	return merged
}

func joinInstructions(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n" + b
	}
}
