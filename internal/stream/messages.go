// Package stream is the persistent bidirectional client protocol: a
// websocket transport carrying a closed set of inbound commands and the
// ordered session event stream outbound. Events for one session are
// delivered FIFO; a malformed message is answered with a protocol error
// and never touches session state.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"truthengine/internal/session"
)

// ErrProtocol marks a malformed or unknown client message.
var ErrProtocol = errors.New("protocol error")

// Inbound is the closed set of client-to-server messages. New variants
// must be added to DecodeInbound and every dispatch switch; the compiler
// cannot be silently bypassed with an unhandled string tag.
type Inbound interface {
	inbound()
}

// StartTextVerification begins a session over direct text input.
type StartTextVerification struct {
	Text    string            `json:"text"`
	Options map[string]string `json:"options,omitempty"`
}

// StartImageVerification begins a session over a document or image; the
// extraction backend runs before tiered verification.
type StartImageVerification struct {
	Image    []byte            `json:"image"`
	Filename string            `json:"filename"`
	Options  map[string]string `json:"options,omitempty"`
}

// SubmitFollowUpAnswers answers one clarification round.
type SubmitFollowUpAnswers struct {
	SessionID string            `json:"session_id"`
	Answers   map[string]string `json:"answers"`
}

// ResumeSession re-attaches a reconnecting client to an existing session.
type ResumeSession struct {
	SessionID string `json:"session_id"`
}

// Ping is the client keep-alive.
type Ping struct{}

func (StartTextVerification) inbound()  {}
func (StartImageVerification) inbound() {}
func (SubmitFollowUpAnswers) inbound()  {}
func (ResumeSession) inbound()          {}
func (Ping) inbound()                   {}

// envelope is the wire framing for both directions.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound wire tags.
const (
	msgStartText     = "start_text_verification"
	msgStartImage    = "start_image_verification"
	msgSubmitAnswers = "submit_follow_up_answers"
	msgResume        = "resume_session"
	msgPing          = "ping"
)

// Outbound wire tags that are not session lifecycle events. Session
// events go out under their own event kind tags.
const (
	MsgConnectionEstablished = "connection_established"
	MsgPong                  = "pong"
	MsgSessionSnapshot       = "session_snapshot"
	MsgProtocolError         = "protocol_error"
)

// DecodeInbound parses one client frame into its closed-union variant.
func DecodeInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame: %v", ErrProtocol, err)
	}

	switch env.Type {
	case msgStartText:
		var msg StartTextVerification
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("%w: bad %s payload: %v", ErrProtocol, env.Type, err)
		}
		if msg.Text == "" {
			return nil, fmt.Errorf("%w: %s requires text", ErrProtocol, env.Type)
		}
		return msg, nil

	case msgStartImage:
		var msg StartImageVerification
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("%w: bad %s payload: %v", ErrProtocol, env.Type, err)
		}
		if len(msg.Image) == 0 {
			return nil, fmt.Errorf("%w: %s requires image data", ErrProtocol, env.Type)
		}
		return msg, nil

	case msgSubmitAnswers:
		var msg SubmitFollowUpAnswers
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("%w: bad %s payload: %v", ErrProtocol, env.Type, err)
		}
		if msg.SessionID == "" {
			return nil, fmt.Errorf("%w: %s requires session_id", ErrProtocol, env.Type)
		}
		return msg, nil

	case msgResume:
		var msg ResumeSession
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("%w: bad %s payload: %v", ErrProtocol, env.Type, err)
		}
		if msg.SessionID == "" {
			return nil, fmt.Errorf("%w: %s requires session_id", ErrProtocol, env.Type)
		}
		return msg, nil

	case msgPing:
		return Ping{}, nil

	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrProtocol, env.Type)
	}
}

// EncodeInbound frames a client message for sending. Used by the client.
func EncodeInbound(msg Inbound) ([]byte, error) {
	var tag string
	switch msg.(type) {
	case StartTextVerification:
		tag = msgStartText
	case StartImageVerification:
		tag = msgStartImage
	case SubmitFollowUpAnswers:
		tag = msgSubmitAnswers
	case ResumeSession:
		tag = msgResume
	case Ping:
		tag = msgPing
	default:
		return nil, fmt.Errorf("%w: unencodable message %T", ErrProtocol, msg)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: tag, Payload: payload})
}

// EncodeEvent frames one session lifecycle event under its kind tag.
func EncodeEvent(ev session.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: string(ev.Kind), Payload: payload})
}

// EncodeFrame frames a non-event outbound message.
func EncodeFrame(tag string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(envelope{Type: tag, Payload: raw})
}

// DecodeFrame parses one server frame, returning its tag and payload.
func DecodeFrame(data []byte) (string, json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("%w: malformed frame: %v", ErrProtocol, err)
	}
	return env.Type, env.Payload, nil
}
