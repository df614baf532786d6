// Package session owns one persistent websocket connection per client:
// it multiplexes outbound game events, inbound client requests and
// heartbeat supervision, and binds the connection to at most one game.
package session

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jacobtread/Quizler/internal/game"
	"github.com/jacobtread/Quizler/internal/games"
	"github.com/jacobtread/Quizler/internal/logging"
	"github.com/jacobtread/Quizler/internal/msg"
	"github.com/jacobtread/Quizler/internal/types"
)

// writeWait is the deadline applied to control frame writes
const writeWait = 10 * time.Second

// Variables rather than constants so tests can shrink the heartbeat
// window
var (
	// heartbeatInterval is how often the server pings the client
	heartbeatInterval = 5 * time.Second
	// heartbeatTimeout is how long the client may stay silent before
	// the connection is considered lost
	heartbeatTimeout = 15 * time.Second
)

// Atomic provider for session IDs
var sessionID atomic.Uint32

// Session is the state owned by one connection's event loop. Nothing
// outside the loop touches the socket; fan-in happens through the
// event queue.
type Session struct {
	// Unique ID of the session
	id types.SessionID
	// The registry games are resolved against
	registry *games.Registry
	// The underlying socket connection
	socket *websocket.Conn
	// Queue the bound game delivers events through
	queue *game.EventQueue
	// The game this session is currently bound to, if any
	boundGame *game.Game

	// Unix nanos of the last inbound frame, shared with the read
	// goroutine and the control frame handlers
	lastHeard atomic.Int64
	// Inbound data frames from the read goroutine. Closed when the
	// connection drops.
	inbound chan inboundFrame
}

type inboundFrame struct {
	messageType int
	data        []byte
}

// Spawn starts the event loop for a freshly upgraded connection
func Spawn(socket *websocket.Conn, registry *games.Registry) {
	session := &Session{
		id:       sessionID.Add(1),
		registry: registry,
		socket:   socket,
		queue:    game.NewEventQueue(),
		inbound:  make(chan inboundFrame, 8),
	}
	session.touch()

	logging.LogSessionEvent("session_started", session.id, nil)

	go session.readLoop()
	go session.process()
}

func (s *Session) touch() {
	s.lastHeard.Store(time.Now().UnixNano())
}

func (s *Session) sinceHeard() time.Duration {
	return time.Since(time.Unix(0, s.lastHeard.Load()))
}

// readLoop pulls frames off the socket and forwards them to the event
// loop. Control frames are handled inline by the gorilla handlers:
// pings are answered with pongs, and both refresh the heartbeat.
func (s *Session) readLoop() {
	defer close(s.inbound)

	s.socket.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})
	s.socket.SetPingHandler(func(appData string) error {
		s.touch()
		// WriteControl is safe for use concurrently with the event
		// loop's data frame writes
		return s.socket.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		messageType, data, err := s.socket.ReadMessage()
		if err != nil {
			// Includes client close frames and lost connections
			return
		}
		s.inbound <- inboundFrame{messageType: messageType, data: data}
	}
}

// process is the session event loop: outbound events, inbound frames
// and the heartbeat ticker
func (s *Session) process() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	defer s.cleanup()

	for {
		select {
		case <-s.queue.Signal():
			for {
				event, ok := s.queue.Poll()
				if !ok {
					break
				}
				s.writeEvent(event)
			}

		case frame, ok := <-s.inbound:
			if !ok {
				return
			}
			s.touch()
			if frame.messageType == websocket.TextMessage {
				s.handleFrame(frame.data)
			}

		case <-ticker.C:
			if s.sinceHeard() >= heartbeatTimeout {
				logging.LogSessionEvent("session_timeout", s.id, nil)
				return
			}
			if err := s.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// cleanup releases everything the loop owned: the queue stops
// accepting events, the bound game forgets this session and the socket
// is closed
func (s *Session) cleanup() {
	s.queue.Close()

	if s.boundGame != nil {
		bound := s.boundGame
		s.boundGame = nil
		// Errors are irrelevant here; the game may already be stopped
		_ = bound.RemovePlayer(s.id, s.id, types.LostConnection)
	}

	_ = s.socket.Close()

	// Unblock the read goroutine if it was mid-send; closing the socket
	// ends it and it closes the channel
	for range s.inbound {
	}

	logging.LogSessionEvent("session_stopped", s.id, nil)
}

// writeEvent serializes one server event onto the socket. A Kicked
// event naming this session unbinds the game before delivery. Write
// failures drop the event; the heartbeat will reap the connection.
func (s *Session) writeEvent(event *msg.ServerEvent) {
	if event.Ty == msg.EventTypeKicked && event.ID == s.id {
		s.boundGame = nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		logging.Error("Failed to serialize server event", map[string]interface{}{
			"session": s.id,
			"error":   err,
		})
		return
	}
	if err := s.socket.WriteMessage(websocket.TextMessage, data); err != nil {
		logging.Debug("Dropped event on failed write", map[string]interface{}{
			"session": s.id,
		})
	}
}

// writeResponse serializes the direct response to a client request
func (s *Session) writeResponse(response msg.ServerResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error("Failed to serialize response", map[string]interface{}{
			"session": s.id,
			"error":   err,
		})
		return
	}
	_ = s.socket.WriteMessage(websocket.TextMessage, data)
}

// handleFrame parses one inbound text frame and dispatches it. A frame
// that fails to parse is answered with MalformedMessage; the session
// keeps running.
func (s *Session) handleFrame(data []byte) {
	var request msg.ClientRequest
	if err := json.Unmarshal(data, &request); err != nil {
		// Recover the rid if the envelope was readable so the client
		// can still correlate the failure
		var head struct {
			Rid uint32 `json:"rid"`
		}
		_ = json.Unmarshal(data, &head)
		s.writeResponse(msg.ErrorResponse(head.Rid, types.ErrMalformedMessage))
		return
	}
	s.writeResponse(s.handleRequest(&request))
}

// handleRequest runs one request to completion and produces its direct
// response
func (s *Session) handleRequest(request *msg.ClientRequest) msg.ServerResponse {
	var response msg.ServerResponse
	var err error

	switch request.Ty {
	case msg.ClientInitialize:
		response, err = s.initialize(request)
	case msg.ClientConnect:
		response, err = s.connect(request)
	case msg.ClientJoin:
		response, err = s.join(request)
	case msg.ClientReady:
		response, err = s.ready(request)
	case msg.ClientHostAction:
		response, err = s.hostAction(request)
	case msg.ClientAnswer:
		response, err = s.answer(request)
	case msg.ClientKick:
		response, err = s.kick(request)
	default:
		err = types.ErrMalformedMessage
	}

	if err != nil {
		return msg.ErrorResponse(request.Rid, types.AsServerError(err))
	}
	return response
}

// disconnect removes this session from any previously bound game.
// Called before binding a new one on Initialize and Connect.
func (s *Session) disconnect() {
	if s.boundGame == nil {
		return
	}
	bound := s.boundGame
	s.boundGame = nil
	_ = bound.RemovePlayer(s.id, s.id, types.Disconnected)
}

// initialize claims a prepared quiz, making this session the host of a
// newly registered game
func (s *Session) initialize(request *msg.ClientRequest) (msg.ServerResponse, error) {
	s.disconnect()

	initialized, err := s.registry.Initialize(request.UUID, s.id, s.queue)
	if err != nil {
		return msg.ServerResponse{}, err
	}

	s.boundGame = initialized.Game
	return msg.Joined(request.Rid, s.id, initialized.Token, initialized.Config), nil
}

// connect binds this session to the live game matching the token
func (s *Session) connect(request *msg.ClientRequest) (msg.ServerResponse, error) {
	s.disconnect()

	token, err := types.ParseToken(request.Token)
	if err != nil {
		return msg.ServerResponse{}, err
	}

	bound, ok := s.registry.GetGame(token)
	if !ok {
		return msg.ServerResponse{}, types.ErrInvalidToken
	}

	s.boundGame = bound
	return msg.Ok(request.Rid), nil
}

// join enters the bound game as a player under the requested name. A
// failed join unbinds the game so the session can try another.
func (s *Session) join(request *msg.ClientRequest) (msg.ServerResponse, error) {
	if s.boundGame == nil {
		return msg.ServerResponse{}, types.ErrUnexpected
	}

	joined, err := s.boundGame.Join(s.id, s.queue, request.Name)
	if err != nil {
		s.boundGame = nil
		return msg.ServerResponse{}, err
	}

	return msg.Joined(request.Rid, s.id, joined.Token, joined.Config), nil
}

func (s *Session) ready(request *msg.ClientRequest) (msg.ServerResponse, error) {
	if s.boundGame == nil {
		return msg.ServerResponse{}, types.ErrUnexpected
	}
	s.boundGame.Ready(s.id)
	return msg.Ok(request.Rid), nil
}

func (s *Session) hostAction(request *msg.ClientRequest) (msg.ServerResponse, error) {
	if s.boundGame == nil {
		return msg.ServerResponse{}, types.ErrUnexpected
	}
	if !request.Action.IsValid() {
		return msg.ServerResponse{}, types.ErrMalformedMessage
	}
	if err := s.boundGame.HostAction(s.id, request.Action); err != nil {
		return msg.ServerResponse{}, err
	}
	return msg.Ok(request.Rid), nil
}

func (s *Session) answer(request *msg.ClientRequest) (msg.ServerResponse, error) {
	if s.boundGame == nil {
		return msg.ServerResponse{}, types.ErrUnexpected
	}
	if request.Answer == nil {
		return msg.ServerResponse{}, types.ErrInvalidAnswer
	}
	if err := s.boundGame.Answer(s.id, request.Answer); err != nil {
		return msg.ServerResponse{}, err
	}
	return msg.Ok(request.Rid), nil
}

func (s *Session) kick(request *msg.ClientRequest) (msg.ServerResponse, error) {
	if s.boundGame == nil {
		return msg.ServerResponse{}, types.ErrUnexpected
	}
	if err := s.boundGame.RemovePlayer(s.id, request.ID, types.RemovedByHost); err != nil {
		return msg.ServerResponse{}, err
	}
	return msg.Ok(request.Rid), nil
}
