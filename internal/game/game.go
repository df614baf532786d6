// Package game implements the per-quiz state machine: lobby, timed
// countdowns, readiness aggregation, answer collection, marking and
// broadcast fan-out to every bound session.
package game

import (
	"strings"
	"sync"
	"time"

	"github.com/jacobtread/Quizler/internal/filter"
	"github.com/jacobtread/Quizler/internal/logging"
	"github.com/jacobtread/Quizler/internal/msg"
	"github.com/jacobtread/Quizler/internal/types"
)

// Registry is the subset of the game registry the state machine needs:
// checking it is still listed before a timer fires, and scheduling its
// own removal when stopping.
type Registry interface {
	IsGame(token types.GameToken) bool
	RemoveGame(token types.GameToken)
}

// Duration of the Lobby -> Starting and AwaitingReady -> PreQuestion
// countdowns
const startDuration = 5 * time.Second

// hostSession tracks the single host bound to a game
type hostSession struct {
	id    types.SessionID
	queue *EventQueue
	ready bool
}

// playerSession tracks one joined player
type playerSession struct {
	id    types.SessionID
	queue *EventQueue
	ready bool
	name  string
	// One record per question; length always matches the config
	answers []answerRecord
	score   uint32
}

// answerRecord stores a player's answer to one question along with the
// elapsed time at submission and the score assigned during marking
type answerRecord struct {
	answered bool
	elapsed  time.Duration
	answer   types.Answer
	score    *types.Score
}

// Game is one live quiz. A single mutex guards all state; every public
// method acquires it exclusively, so a state change and the events it
// emits are atomic with respect to other operations.
type Game struct {
	mu sync.Mutex

	registry Registry
	token    types.GameToken
	host     hostSession
	players  []*playerSession
	config   *types.GameConfig

	state         types.GameState
	questionIndex int

	// Pending timed transition, if any. The generation counter lets a
	// fired callback detect that it was cancelled or superseded.
	timer    *time.Timer
	timerGen uint64

	// Start time of the current question
	startTime time.Time
}

// JoinedMessage carries the details returned to a session that
// initialized or joined a game
type JoinedMessage struct {
	Token  types.GameToken
	Config *types.GameConfig
}

// New creates a game in the Lobby state with the provided host session
func New(registry Registry, token types.GameToken, hostID types.SessionID, hostQueue *EventQueue, config *types.GameConfig) *Game {
	return &Game{
		registry: registry,
		token:    token,
		host:     hostSession{id: hostID, queue: hostQueue},
		config:   config,
		state:    types.StateLobby,
	}
}

// Token returns the token this game is registered under
func (g *Game) Token() types.GameToken {
	return g.token
}

// State returns the current game state
func (g *Game) State() types.GameState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Join attempts to add a player to the game under the provided name.
// On success every existing participant is told about the joiner and
// the joiner is told about every existing player.
func (g *Game) Join(id types.SessionID, queue *EventQueue, name string) (*JoinedMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Joining is only possible before the first question
	if g.state != types.StateLobby && g.state != types.StateStarting {
		return nil, types.ErrNotJoinable
	}

	name = strings.TrimSpace(name)
	if len(name) < types.MinPlayerNameLength || len(name) > types.MaxPlayerNameLength {
		return nil, types.ErrInvalidNameLength
	}

	if filter.Inappropriate(g.config.Filtering, name) {
		return nil, types.ErrInappropriateName
	}

	for _, player := range g.players {
		if strings.EqualFold(player.name, name) {
			return nil, types.ErrUsernameTaken
		}
	}

	if len(g.players) >= g.config.MaxPlayers {
		return nil, types.ErrCapacityReached
	}

	joiner := &playerSession{
		id:      id,
		queue:   queue,
		name:    name,
		answers: make([]answerRecord, len(g.config.Questions)),
	}

	// Announce the joiner to everyone already present, and everyone
	// already present to the joiner
	joinEvent := msg.PlayerData(id, name)
	for _, player := range g.players {
		player.queue.SendShared(joinEvent)
		joiner.queue.Send(*msg.PlayerData(player.id, player.name))
	}
	g.host.queue.SendShared(joinEvent)

	g.players = append(g.players, joiner)

	logging.LogGameEvent("player_joined", g.token.String(), map[string]interface{}{
		"player": id,
		"name":   name,
		"count":  len(g.players),
	})

	return &JoinedMessage{Token: g.token, Config: g.config}, nil
}

// Ready marks the provided session as ready, advancing the game when
// the host and every player are ready
func (g *Game) Ready(id types.SessionID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id == g.host.id {
		g.host.ready = true
	} else {
		for _, player := range g.players {
			if player.id == id {
				player.ready = true
				break
			}
		}
	}

	g.updateReady()
}

// HostAction performs a host-only action on the game
func (g *Game) HostAction(id types.SessionID, action types.HostAction) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id != g.host.id {
		return types.ErrInvalidPermission
	}

	switch action {
	case types.HostActionNext:
		g.nextState()
	case types.HostActionReset:
		g.resetCompletely()
	default:
		return types.ErrMalformedMessage
	}
	return nil
}

// Answer records a player's answer to the current question. When every
// player has answered the game advances to marking immediately.
func (g *Game) Answer(id types.SessionID, answer *types.Answer) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Capture elapsed before any other work so slow locking doesn't
	// penalize the player
	elapsed := time.Since(g.startTime)

	if g.state != types.StateAwaitingAnswers {
		return types.ErrUnexpectedMessage
	}

	var player *playerSession
	for _, p := range g.players {
		if p.id == id {
			player = p
			break
		}
	}
	if player == nil {
		return types.ErrUnknownPlayer
	}

	question := g.config.Questions[g.questionIndex]
	if answer == nil || !answer.Matches(question) {
		return types.ErrInvalidAnswer
	}

	player.answers[g.questionIndex] = answerRecord{
		answered: true,
		elapsed:  elapsed,
		answer:   *answer,
	}

	// Skip the remaining wait once everyone has answered
	for _, p := range g.players {
		if !p.answers[g.questionIndex].answered {
			return nil
		}
	}
	g.nextState()
	return nil
}

// GetImage returns a copy of the stored image bytes for the provided
// reference
func (g *Game) GetImage(uuid types.ImageRef) (types.Image, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	image, ok := g.config.Images[uuid]
	if !ok {
		return types.Image{}, false
	}
	data := make([]byte, len(image.Data))
	copy(data, image.Data)
	return types.Image{Mime: image.Mime, Data: data}, true
}

// RemovePlayer removes the target session from the game. Players may
// remove themselves; only the host may remove others. Removing the
// host stops the game entirely.
func (g *Game) RemovePlayer(actor, target types.SessionID, reason types.RemoveReason) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// A stopped game accepts no further mutations; sessions tearing
	// down after the stop have nothing left to remove
	if g.state == types.StateStopped {
		return nil
	}

	if target != actor && actor != g.host.id {
		return types.ErrInvalidPermission
	}

	// The host leaving ends the game for everyone
	if target == g.host.id {
		g.stop()
		return nil
	}

	index := -1
	for i, player := range g.players {
		if player.id == target {
			index = i
			break
		}
	}
	if index == -1 {
		return types.ErrUnknownPlayer
	}

	// Only the host may claim a kick; self-removal is a disconnect
	if reason == types.RemovedByHost && actor != g.host.id {
		reason = types.Disconnected
	}

	kicked := msg.KickedEvent(target, reason)
	for _, player := range g.players {
		player.queue.SendShared(kicked)
	}
	g.host.queue.SendShared(kicked)

	g.players = append(g.players[:index], g.players[index+1:]...)

	logging.LogGameEvent("player_removed", g.token.String(), map[string]interface{}{
		"player": target,
		"reason": string(reason),
	})

	g.updateReady()

	// Reset the game if everyone disconnected while in progress
	if g.state != types.StateFinished && len(g.players) == 0 {
		g.resetCompletely()
	}
	return nil
}

// Stop ends the game, kicking every participant and scheduling removal
// from the registry. Idempotent.
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stop()
}

// sendAll delivers an event to every player and the host. The event is
// shared across all queues rather than copied per recipient.
func (g *Game) sendAll(event *msg.ServerEvent) {
	for _, player := range g.players {
		player.queue.SendShared(event)
	}
	g.host.queue.SendShared(event)
}

// setState updates the state and announces it to every participant
func (g *Game) setState(state types.GameState) {
	g.state = state
	g.sendAll(msg.GameStateEvent(state))
}

// timedNextState schedules a move to the next state after the provided
// duration and announces the timer to clients. The fired callback
// verifies the game still exists in the registry and that the state was
// not changed by an intervening host action; a timer that lost that
// race is a no-op.
func (g *Game) timedNextState(duration time.Duration) {
	armedState := g.state
	g.timerGen++
	generation := g.timerGen

	g.timer = time.AfterFunc(duration, func() {
		g.mu.Lock()
		defer g.mu.Unlock()

		// Cancelled or replaced while this callback was pending
		if generation != g.timerGen {
			return
		}
		g.timer = nil

		if g.state != armedState || g.state == types.StateStopped {
			return
		}
		if g.registry != nil && !g.registry.IsGame(g.token) {
			return
		}
		g.nextState()
	})

	g.sendAll(msg.TimerEvent(uint32(duration.Milliseconds())))
}

// cancelTimer stops any pending timed transition. Must be called
// before arming a new timer or leaving a timed state early.
func (g *Game) cancelTimer() {
	g.timerGen++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// nextState moves the game to the next state based on its current one
func (g *Game) nextState() {
	g.cancelTimer()

	switch g.state {
	case types.StateLobby:
		g.setState(types.StateStarting)
		g.timedNextState(startDuration)

	case types.StateStarting:
		g.question()

	case types.StateAwaitingReady:
		g.setState(types.StatePreQuestion)
		g.timedNextState(startDuration)

	case types.StatePreQuestion:
		g.setState(types.StateAwaitingAnswers)
		g.startTime = time.Now()
		question := g.config.Questions[g.questionIndex]
		g.timedNextState(time.Duration(question.AnswerTime) * time.Millisecond)

	case types.StateAwaitingAnswers:
		g.markAnswers()

	case types.StateMarked:
		g.nextQuestion()

	case types.StateFinished:
		g.resetCompletely()

	case types.StateStopped:
	}
}

// question sends the current question and begins awaiting readiness
func (g *Game) question() {
	for _, player := range g.players {
		player.ready = false
	}
	g.host.ready = false

	g.sendAll(msg.QuestionEvent(g.config.Questions[g.questionIndex]))
	g.setState(types.StateAwaitingReady)
}

// updateReady advances past AwaitingReady once the host and every
// player have reported ready
func (g *Game) updateReady() {
	if g.state != types.StateAwaitingReady {
		return
	}
	if !g.host.ready {
		return
	}
	for _, player := range g.players {
		if !player.ready {
			return
		}
	}
	g.nextState()
}

// nextQuestion moves to the next question, or finishes the game when
// the last question has been marked
func (g *Game) nextQuestion() {
	if g.questionIndex+1 >= len(g.config.Questions) {
		g.setState(types.StateFinished)
		return
	}
	g.questionIndex++
	g.question()
}

// markAnswers scores every player's answer to the current question,
// sends each player their own score and broadcasts the updated totals
// in join order
func (g *Game) markAnswers() {
	question := g.config.Questions[g.questionIndex]

	scores := make(types.ScoreCollection, 0, len(g.players))
	for _, player := range g.players {
		record := &player.answers[g.questionIndex]

		var score types.Score
		if record.answered {
			score = Mark(record.elapsed, question, &record.answer)
		} else {
			score = types.ScoreIncorrect()
		}
		record.score = &score

		player.score += score.Points()
		player.queue.Send(*msg.ScoreEvent(score))

		scores = append(scores, types.ScoreEntry{ID: player.id, Score: player.score})
	}

	g.sendAll(msg.ScoresEvent(scores))
	g.setState(types.StateMarked)
}

// resetCompletely returns the game and all player data to the lobby.
// Stopped is terminal; a stopped game never returns to the lobby.
func (g *Game) resetCompletely() {
	if g.state == types.StateStopped {
		return
	}

	g.cancelTimer()

	g.questionIndex = 0
	for _, player := range g.players {
		for i := range player.answers {
			player.answers[i] = answerRecord{}
		}
		player.score = 0
	}

	g.setState(types.StateLobby)
}

// stop ends the game. Registry removal is scheduled off the game lock
// to preserve the registry-then-game lock order.
func (g *Game) stop() {
	if g.state == types.StateStopped {
		return
	}

	logging.LogGameEvent("game_stopped", g.token.String(), nil)

	if g.registry != nil {
		token := g.token
		registry := g.registry
		go registry.RemoveGame(token)
	}

	for _, player := range g.players {
		player.queue.Send(*msg.KickedEvent(player.id, types.HostDisconnect))
	}
	g.host.queue.Send(*msg.KickedEvent(g.host.id, types.Disconnected))

	g.state = types.StateStopped
}
