package gateway

import "encoding/json"

// Frame is one protocol message on the gateway socket.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Event   string          `json:"event,omitempty"`
	Params  any             `json:"params,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
}

// EventName returns the event label of an event frame. The gateway has
// emitted both `event` and `method` for this historically.
func (f *Frame) EventName() string {
	if f.Event != "" {
		return f.Event
	}
	return f.Method
}

// RPCError is the structured error object in a response frame.
type RPCError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

type connectParams struct {
	MinProtocol int               `json:"minProtocol"`
	MaxProtocol int               `json:"maxProtocol"`
	Client      connectClientInfo `json:"client"`
	Auth        connectAuth       `json:"auth"`
}

type connectClientInfo struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Mode    string `json:"mode"`
}

type connectAuth struct {
	Token string `json:"token"`
}

type agentParams struct {
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
	SessionKey     string `json:"sessionKey,omitempty"`
	TimeoutMs      int64  `json:"timeoutMs,omitempty"`
}

// AgentPayload is one piece of assistant output in an agent.wait result.
type AgentPayload struct {
	Text string `json:"text"`
}

// AgentWaitResult is the parsed result of an agent.wait request.
type AgentWaitResult struct {
	RunID    string         `json:"runId,omitempty"`
	Payloads []AgentPayload `json:"payloads"`
}

// inboundAgentEvent is an assistant-initiated push outside any pending
// request; its text is handed to the OnInbound callback.
type inboundAgentEvent struct {
	Text string `json:"text"`
}
