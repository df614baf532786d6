// Package msg contains the definitions of the client and server wire
// messages. Every message is JSON discriminated by a "ty" field; client
// requests carry a "rid" which is echoed on the direct response so
// clients can tell responses apart from broadcast events.
package msg

import (
	"github.com/google/uuid"

	"github.com/jacobtread/Quizler/internal/types"
)

// ClientMessageType discriminates inbound client messages
type ClientMessageType string

const (
	// ClientInitialize claims a prepared quiz as its host
	ClientInitialize ClientMessageType = "Initialize"
	// ClientConnect binds the session to a live game by token
	ClientConnect ClientMessageType = "Connect"
	// ClientJoin joins the bound game under a display name
	ClientJoin ClientMessageType = "Join"
	// ClientReady marks the session ready for the next question
	ClientReady ClientMessageType = "Ready"
	// ClientHostAction performs a host-only game action
	ClientHostAction ClientMessageType = "HostAction"
	// ClientAnswer answers the current question
	ClientAnswer ClientMessageType = "Answer"
	// ClientKick removes a player from the game
	ClientKick ClientMessageType = "Kick"
)

// ClientRequest is a single inbound frame. Which fields are populated
// depends on Ty.
type ClientRequest struct {
	// Correlation ID echoed back on the response
	Rid uint32 `json:"rid"`
	// The type of message
	Ty ClientMessageType `json:"ty"`

	// UUID of the prepared quiz to initialize
	UUID uuid.UUID `json:"uuid,omitempty"`
	// Game token to connect to (e.g W2133)
	Token string `json:"token,omitempty"`
	// Display name to join with
	Name string `json:"name,omitempty"`
	// Host action to perform
	Action types.HostAction `json:"action,omitempty"`
	// Answer to the current question
	Answer *types.Answer `json:"answer,omitempty"`
	// Target player of a kick
	ID types.SessionID `json:"id,omitempty"`
}

// ResponseType discriminates direct responses to client requests
type ResponseType string

const (
	ResponseTypeJoined ResponseType = "Joined"
	ResponseTypeOk     ResponseType = "Ok"
	ResponseTypeError  ResponseType = "Error"
)

// ServerResponse is the direct reply to one ClientRequest. Unlike
// events it always carries the originating rid.
type ServerResponse struct {
	Rid uint32       `json:"rid"`
	Ty  ResponseType `json:"ty"`

	// Session ID of the recipient (Joined)
	ID types.SessionID `json:"id,omitempty"`
	// Token of the joined game (Joined)
	Token string `json:"token,omitempty"`
	// Public projection of the game config (Joined)
	Config *types.GameConfig `json:"config,omitempty"`
	// Error tag (Error)
	Error types.ServerError `json:"error,omitempty"`
}

// Ok creates a plain success response
func Ok(rid uint32) ServerResponse {
	return ServerResponse{Rid: rid, Ty: ResponseTypeOk}
}

// Joined creates the response sent after a successful Initialize or Join
func Joined(rid uint32, id types.SessionID, token types.GameToken, config *types.GameConfig) ServerResponse {
	return ServerResponse{
		Rid:    rid,
		Ty:     ResponseTypeJoined,
		ID:     id,
		Token:  token.String(),
		Config: config,
	}
}

// ErrorResponse creates an error response from a wire error tag
func ErrorResponse(rid uint32, err types.ServerError) ServerResponse {
	return ServerResponse{Rid: rid, Ty: ResponseTypeError, Error: err}
}

// EventType discriminates broadcast and direct server events
type EventType string

const (
	EventTypePlayerData EventType = "PlayerData"
	EventTypeGameState  EventType = "GameState"
	EventTypeTimer      EventType = "Timer"
	EventTypeQuestion   EventType = "Question"
	EventTypeScores     EventType = "Scores"
	EventTypeScore      EventType = "Score"
	EventTypeKicked     EventType = "Kicked"
)

// ServerEvent is a server-initiated message delivered through the
// per-session event queue. Broadcast events are shared by pointer
// across every recipient's queue so they are never mutated after
// construction.
type ServerEvent struct {
	Ty EventType `json:"ty"`

	// Subject player (PlayerData, Kicked)
	ID types.SessionID `json:"id,omitempty"`
	// Player name (PlayerData)
	Name string `json:"name,omitempty"`
	// New game state (GameState)
	State types.GameState `json:"state,omitempty"`
	// Total timer duration in ms (Timer)
	Value uint32 `json:"value,omitempty"`
	// Question payload (Question)
	Question *types.Question `json:"question,omitempty"`
	// Ordered player totals (Scores)
	Scores types.ScoreCollection `json:"scores,omitempty"`
	// Score for the recipient's own answer (Score)
	Score *types.Score `json:"score,omitempty"`
	// Why the subject was removed (Kicked)
	Reason types.RemoveReason `json:"reason,omitempty"`
}

// PlayerData creates the event announcing a player to other participants
func PlayerData(id types.SessionID, name string) *ServerEvent {
	return &ServerEvent{Ty: EventTypePlayerData, ID: id, Name: name}
}

// GameStateEvent creates the event announcing a state change
func GameStateEvent(state types.GameState) *ServerEvent {
	return &ServerEvent{Ty: EventTypeGameState, State: state}
}

// TimerEvent creates the single-shot timer announcement. The value is
// the total duration; clients run the countdown locally.
func TimerEvent(valueMs uint32) *ServerEvent {
	return &ServerEvent{Ty: EventTypeTimer, Value: valueMs}
}

// QuestionEvent creates the event carrying the next question
func QuestionEvent(question *types.Question) *ServerEvent {
	return &ServerEvent{Ty: EventTypeQuestion, Question: question}
}

// ScoresEvent creates the broadcast of every player's running total
func ScoresEvent(scores types.ScoreCollection) *ServerEvent {
	return &ServerEvent{Ty: EventTypeScores, Scores: scores}
}

// ScoreEvent creates the direct event carrying one player's own score
func ScoreEvent(score types.Score) *ServerEvent {
	return &ServerEvent{Ty: EventTypeScore, Score: &score}
}

// KickedEvent creates the event announcing a player removal
func KickedEvent(id types.SessionID, reason types.RemoveReason) *ServerEvent {
	return &ServerEvent{Ty: EventTypeKicked, ID: id, Reason: reason}
}
