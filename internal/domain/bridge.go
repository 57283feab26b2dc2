package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StateToken binds commands and events to the invocation that started them.
type StateToken string

type CommandKind string

const (
	CommandDecrypt     CommandKind = "decrypt"
	CommandHTTPRequest CommandKind = "http_request"
	CommandSuccess     CommandKind = "success"
	CommandError       CommandKind = "error"
	CommandLog         CommandKind = "log"
)

// Command is issued by the decision component and executed by the bridge.
type Command struct {
	Kind    CommandKind      `json:"kind"`
	State   StateToken       `json:"state"`
	Values  []string         `json:"values,omitempty"`
	Request *OutboundRequest `json:"request,omitempty"`
	Payload json.RawMessage  `json:"payload,omitempty"`
	Level   string           `json:"level,omitempty"`
	Message string           `json:"message,omitempty"`
}

func DecryptCommand(state StateToken, values ...string) Command {
	return Command{Kind: CommandDecrypt, State: state, Values: values}
}

func HTTPRequestCommand(state StateToken, req OutboundRequest) Command {
	return Command{Kind: CommandHTTPRequest, State: state, Request: &req}
}

func SuccessCommand(state StateToken, payload json.RawMessage) Command {
	return Command{Kind: CommandSuccess, State: state, Payload: payload}
}

func ErrorCommand(state StateToken, payload json.RawMessage) Command {
	return Command{Kind: CommandError, State: state, Payload: payload}
}

func LogCommand(state StateToken, level, message string) Command {
	return Command{Kind: CommandLog, State: state, Level: level, Message: message}
}

func (c Command) Terminal() bool {
	return c.Kind == CommandSuccess || c.Kind == CommandError
}

type EventKind string

const (
	EventInboundInvocation EventKind = "inbound_invocation"
	EventDecrypted         EventKind = "decrypted"
	EventDecryptionError   EventKind = "decryption_error"
	EventHTTPResponse      EventKind = "http_response"
	EventBadStatus         EventKind = "bad_status"
	EventBadBody           EventKind = "bad_body"
	EventNetworkError      EventKind = "network_error"

	// Host notifications relayed from the browser extension helper.
	EventAuthorized  EventKind = "authorized"
	EventHostContext EventKind = "context"
	EventHostError   EventKind = "host_error"
)

// Event is delivered to the decision component.
type Event struct {
	Kind    EventKind       `json:"kind"`
	State   StateToken      `json:"state"`
	Tag     string          `json:"tag,omitempty"`
	Status  int             `json:"status,omitempty"`
	Values  []string        `json:"values,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func InboundInvocationEvent(state StateToken, payload json.RawMessage) Event {
	return Event{Kind: EventInboundInvocation, State: state, Payload: payload}
}

func DecryptedEvent(state StateToken, values []string) Event {
	return Event{Kind: EventDecrypted, State: state, Values: values}
}

func DecryptionErrorEvent(state StateToken, err error) Event {
	return Event{Kind: EventDecryptionError, State: state, Error: errorText(err)}
}

func HTTPResponseEvent(state StateToken, tag string, status int, body []byte) Event {
	return Event{Kind: EventHTTPResponse, State: state, Tag: tag, Status: status, Body: BodyJSON(body)}
}

func BadStatusEvent(state StateToken, tag string, status int, body []byte) Event {
	return Event{Kind: EventBadStatus, State: state, Tag: tag, Status: status, Body: BodyJSON(body)}
}

func BadBodyEvent(state StateToken, tag string, err error) Event {
	return Event{Kind: EventBadBody, State: state, Tag: tag, Error: errorText(err)}
}

func NetworkErrorEvent(state StateToken, tag string, err error) Event {
	return Event{Kind: EventNetworkError, State: state, Tag: tag, Error: errorText(err)}
}

// HostEvent builds a host notification. It reports false for kinds that are
// not host notifications.
func HostEvent(kind EventKind, state StateToken, payload json.RawMessage, message string) (Event, bool) {
	switch kind {
	case EventAuthorized, EventHostContext:
		return Event{Kind: kind, State: state, Payload: payload}, true
	case EventHostError:
		return Event{Kind: kind, State: state, Payload: payload, Error: message}, true
	default:
		return Event{}, false
	}
}

// BodyJSON keeps valid JSON as-is and wraps anything else in a JSON string so
// events always marshal.
func BodyJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(string(body)); err != nil {
		return nil
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n"))
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (e Event) String() string {
	if e.Tag != "" {
		return fmt.Sprintf("%s[%s]", e.Kind, e.Tag)
	}
	return string(e.Kind)
}
