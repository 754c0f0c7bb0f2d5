package api

import (
	"context"
	"fmt"
)

// Message is one turn of a chat conversation carried through graph state.
// The runtime never interprets Content; it passes messages through to the
// bound ChatModel untouched.
type Message struct {
	Role      string     `json:"role" yaml:"role" mapstructure:"role"`
	Content   string     `json:"content" yaml:"content" mapstructure:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty" mapstructure:"tool_calls"`
}

// ToolCall is a function invocation requested by a model.
type ToolCall struct {
	ID        string         `json:"id,omitempty" yaml:"id,omitempty" mapstructure:"id"`
	Name      string         `json:"name" yaml:"name" mapstructure:"name"`
	Arguments map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty" mapstructure:"arguments"`
}

// ChatResponse is what a ChatModel returns: plain text, tool calls, or both.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatModel is the external chat-model collaborator contract. The core works
// with any implementation, including a trivial stub.
type ChatModel interface {
	// Call sends the conversation (plus optional tool schemas) and returns
	// the model's reply.
	Call(ctx context.Context, messages []Message, tools []ToolSchema) (ChatResponse, error)

	// BindTools returns a client that advertises the given tools on every
	// call. The receiver is unchanged.
	BindTools(tools []Tool) ChatModel

	// SetObservers routes the client's request/response/error notifications
	// through the run's observer list, keyed by the executing node's name.
	SetObservers(obs Observer, node string)
}

// ToolSchema is provider-agnostic function metadata.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Tool is the external tool collaborator contract.
type Tool interface {
	Schema() ToolSchema
	Call(ctx context.Context, call ToolCall) (any, error)
}

// ToolFunc adapts a plain function into a Tool.
type ToolFunc struct {
	Name        string
	Description string
	Parameters  map[string]any
	Fn          func(ctx context.Context, args map[string]any) (any, error)
}

func (t ToolFunc) Schema() ToolSchema {
	return ToolSchema{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
}

func (t ToolFunc) Call(ctx context.Context, call ToolCall) (any, error) {
	return t.Fn(ctx, call.Arguments)
}

// MessagesKey is the state key chat and tool nodes read and append to.
// Attach AppendReducer to it so turns accumulate.
const MessagesKey = "messages"

// ChatNodeFunc wires a ChatModel into a node. On each invocation it reads
// the conversation from state, prepends systemPrompt once when set, calls
// the client, and appends the assistant reply as a delta on MessagesKey.
func ChatNodeFunc(client ChatModel, systemPrompt string) NodeFunc {
	return func(ctx context.Context, s State) (NodeResult, error) {
		if obs, ok := ObserverFromContext(ctx); ok {
			if node, ok := NodeFromContext(ctx); ok {
				client.SetObservers(obs, node)
			}
		}

		msgs := MessagesFromState(s)
		if systemPrompt != "" && (len(msgs) == 0 || msgs[0].Role != "system") {
			msgs = append([]Message{{Role: "system", Content: systemPrompt}}, msgs...)
		}

		resp, err := client.Call(ctx, msgs, nil)
		if err != nil {
			return NodeResult{}, err
		}

		reply := Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls}
		return Delta(map[string]any{MessagesKey: []any{reply}}), nil
	}
}

// ToolNodeFunc wires a tool belt into a node. It executes every tool call
// on the last message and appends one "tool" message per result.
func ToolNodeFunc(tools []Tool) NodeFunc {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Schema().Name] = t
	}

	return func(ctx context.Context, s State) (NodeResult, error) {
		msgs := MessagesFromState(s)
		if len(msgs) == 0 {
			return NodeResult{}, nil
		}

		var results []any
		for _, call := range msgs[len(msgs)-1].ToolCalls {
			tool, ok := byName[call.Name]
			if !ok {
				return NodeResult{}, fmt.Errorf("unknown tool %q", call.Name)
			}
			out, err := tool.Call(ctx, call)
			if err != nil {
				return NodeResult{}, fmt.Errorf("tool %q: %w", call.Name, err)
			}
			results = append(results, Message{Role: "tool", Content: fmt.Sprint(out)})
		}
		if len(results) == 0 {
			return NodeResult{}, nil
		}
		return Delta(map[string]any{MessagesKey: results}), nil
	}
}

// MessagesFromState reads MessagesKey and coerces its entries into Messages.
// Entries may be Message values or generic maps (as produced by textual
// checkpoint codecs); anything else is skipped.
func MessagesFromState(s State) []Message {
	raw, _ := s.Get(MessagesKey)
	seq, ok := raw.([]any)
	if !ok {
		if m, ok := AsMessage(raw); ok {
			return []Message{m}
		}
		return nil
	}

	out := make([]Message, 0, len(seq))
	for _, e := range seq {
		if m, ok := AsMessage(e); ok {
			out = append(out, m)
		}
	}
	return out
}

// AsMessage coerces a state value into a Message.
func AsMessage(v any) (Message, bool) {
	switch t := v.(type) {
	case Message:
		return t, true
	case map[string]any:
		m := Message{}
		if role, ok := t["role"].(string); ok {
			m.Role = role
		}
		if content, ok := t["content"].(string); ok {
			m.Content = content
		}
		if m.Role == "" && m.Content == "" {
			return Message{}, false
		}
		return m, true
	default:
		return Message{}, false
	}
}
