package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobtread/Quizler/internal/msg"
	"github.com/jacobtread/Quizler/internal/types"
)

// stubRegistry satisfies the registry dependency without a real game
// registry behind it
type stubRegistry struct {
	removed chan types.GameToken
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{removed: make(chan types.GameToken, 1)}
}

func (r *stubRegistry) IsGame(types.GameToken) bool { return true }

func (r *stubRegistry) RemoveGame(token types.GameToken) { r.removed <- token }

const hostID types.SessionID = 1

func testConfig(maxPlayers, questions int) *types.GameConfig {
	config := &types.GameConfig{
		Name:       "Test Quiz",
		MaxPlayers: maxPlayers,
		Filtering:  types.FilteringMedium,
		Images:     map[types.ImageRef]types.Image{},
	}
	for i := 0; i < questions; i++ {
		config.Questions = append(config.Questions, &types.Question{
			Ty:         types.QuestionTrueFalse,
			Text:       "Yes or no",
			AnswerTime: 10000,
			Scoring:    types.Scoring{MinScore: 0, MaxScore: 100},
			Answer:     true,
		})
	}
	return config
}

func newTestGame(t *testing.T, maxPlayers, questions int) (*Game, *stubRegistry, *EventQueue) {
	t.Helper()
	registry := newStubRegistry()
	token, err := types.ParseToken("TESTA")
	require.NoError(t, err)
	hostQueue := NewEventQueue()
	return New(registry, token, hostID, hostQueue, testConfig(maxPlayers, questions)), registry, hostQueue
}

func drainEvents(queue *EventQueue) []*msg.ServerEvent {
	var events []*msg.ServerEvent
	for {
		event, ok := queue.Poll()
		if !ok {
			return events
		}
		events = append(events, event)
	}
}

func eventsOfType(events []*msg.ServerEvent, ty msg.EventType) []*msg.ServerEvent {
	var matched []*msg.ServerEvent
	for _, event := range events {
		if event.Ty == ty {
			matched = append(matched, event)
		}
	}
	return matched
}

// advance moves a lobby game with all players joined into
// AwaitingAnswers through host actions
func advanceToAnswers(t *testing.T, game *Game) {
	t.Helper()
	require.NoError(t, game.HostAction(hostID, types.HostActionNext)) // Starting
	require.NoError(t, game.HostAction(hostID, types.HostActionNext)) // AwaitingReady
	require.NoError(t, game.HostAction(hostID, types.HostActionNext)) // PreQuestion
	require.NoError(t, game.HostAction(hostID, types.HostActionNext)) // AwaitingAnswers
	require.Equal(t, types.StateAwaitingAnswers, game.State())
}

func TestJoinAnnouncements(t *testing.T) {
	game, _, hostQueue := newTestGame(t, 10, 1)

	aliceQueue := NewEventQueue()
	joined, err := game.Join(2, aliceQueue, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "TESTA", joined.Token.String())
	assert.Equal(t, "Test Quiz", joined.Config.Name)

	bobQueue := NewEventQueue()
	_, err = game.Join(3, bobQueue, "Bob")
	require.NoError(t, err)

	// Host heard about both players
	hostEvents := eventsOfType(drainEvents(hostQueue), msg.EventTypePlayerData)
	require.Len(t, hostEvents, 2)
	assert.Equal(t, "Alice", hostEvents[0].Name)
	assert.Equal(t, "Bob", hostEvents[1].Name)

	// Alice heard about Bob joining after her
	aliceEvents := eventsOfType(drainEvents(aliceQueue), msg.EventTypePlayerData)
	require.Len(t, aliceEvents, 1)
	assert.Equal(t, "Bob", aliceEvents[0].Name)

	// Bob was told about Alice who was already present
	bobEvents := eventsOfType(drainEvents(bobQueue), msg.EventTypePlayerData)
	require.Len(t, bobEvents, 1)
	assert.Equal(t, "Alice", bobEvents[0].Name)
}

func TestJoinValidation(t *testing.T) {
	tests := []struct {
		name     string
		joinName string
		wantErr  types.ServerError
	}{
		{name: "empty name", joinName: "", wantErr: types.ErrInvalidNameLength},
		{name: "whitespace only", joinName: "   ", wantErr: types.ErrInvalidNameLength},
		{name: "name too long", joinName: "0123456789012345678901234567890", wantErr: types.ErrInvalidNameLength},
		{name: "profanity filtered", joinName: "fuck", wantErr: types.ErrInappropriateName},
		{name: "duplicate name", joinName: "Alice", wantErr: types.ErrUsernameTaken},
		{name: "duplicate differs only by case", joinName: "ALICE", wantErr: types.ErrUsernameTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game, _, _ := newTestGame(t, 10, 1)
			_, err := game.Join(2, NewEventQueue(), "Alice")
			require.NoError(t, err)

			_, err = game.Join(3, NewEventQueue(), tt.joinName)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJoinTrimsName(t *testing.T) {
	game, _, hostQueue := newTestGame(t, 10, 1)
	_, err := game.Join(2, NewEventQueue(), "  Alice  ")
	require.NoError(t, err)

	events := eventsOfType(drainEvents(hostQueue), msg.EventTypePlayerData)
	require.Len(t, events, 1)
	assert.Equal(t, "Alice", events[0].Name)
}

func TestJoinCapacity(t *testing.T) {
	game, _, _ := newTestGame(t, 1, 1)
	_, err := game.Join(2, NewEventQueue(), "Alice")
	require.NoError(t, err)

	_, err = game.Join(3, NewEventQueue(), "Bob")
	assert.ErrorIs(t, err, types.ErrCapacityReached)
}

func TestJoinOnlyBeforeQuestions(t *testing.T) {
	game, _, _ := newTestGame(t, 10, 1)

	// Starting still accepts joiners
	require.NoError(t, game.HostAction(hostID, types.HostActionNext))
	require.Equal(t, types.StateStarting, game.State())
	_, err := game.Join(2, NewEventQueue(), "Alice")
	require.NoError(t, err)

	// Once the first question is out the game is closed
	require.NoError(t, game.HostAction(hostID, types.HostActionNext))
	require.Equal(t, types.StateAwaitingReady, game.State())
	_, err = game.Join(3, NewEventQueue(), "Bob")
	assert.ErrorIs(t, err, types.ErrNotJoinable)
}

func TestHostActionPermission(t *testing.T) {
	game, _, _ := newTestGame(t, 10, 1)
	_, err := game.Join(2, NewEventQueue(), "Alice")
	require.NoError(t, err)

	err = game.HostAction(2, types.HostActionNext)
	assert.ErrorIs(t, err, types.ErrInvalidPermission)
	assert.Equal(t, types.StateLobby, game.State())
}

func TestReadyQuorum(t *testing.T) {
	game, _, _ := newTestGame(t, 10, 1)
	aliceQueue := NewEventQueue()
	bobQueue := NewEventQueue()
	_, err := game.Join(2, aliceQueue, "Alice")
	require.NoError(t, err)
	_, err = game.Join(3, bobQueue, "Bob")
	require.NoError(t, err)

	require.NoError(t, game.HostAction(hostID, types.HostActionNext))
	require.NoError(t, game.HostAction(hostID, types.HostActionNext))
	require.Equal(t, types.StateAwaitingReady, game.State())

	game.Ready(hostID)
	assert.Equal(t, types.StateAwaitingReady, game.State())
	game.Ready(2)
	assert.Equal(t, types.StateAwaitingReady, game.State())

	// The final ready report moves the game on
	game.Ready(3)
	assert.Equal(t, types.StatePreQuestion, game.State())
}

func TestAnswerFlow(t *testing.T) {
	game, _, hostQueue := newTestGame(t, 10, 1)
	aliceQueue := NewEventQueue()
	_, err := game.Join(2, aliceQueue, "Alice")
	require.NoError(t, err)

	// Answers outside AwaitingAnswers are rejected
	err = game.Answer(2, &types.Answer{Ty: types.QuestionTrueFalse, Bool: true})
	assert.ErrorIs(t, err, types.ErrUnexpectedMessage)

	advanceToAnswers(t, game)

	err = game.Answer(99, &types.Answer{Ty: types.QuestionTrueFalse, Bool: true})
	assert.ErrorIs(t, err, types.ErrUnknownPlayer)

	err = game.Answer(2, &types.Answer{Ty: types.QuestionSingle, Index: 0})
	assert.ErrorIs(t, err, types.ErrInvalidAnswer)

	// The last outstanding answer skips the remaining wait
	drainEvents(hostQueue)
	drainEvents(aliceQueue)
	err = game.Answer(2, &types.Answer{Ty: types.QuestionTrueFalse, Bool: true})
	require.NoError(t, err)
	assert.Equal(t, types.StateMarked, game.State())

	// Alice received her own score plus the shared totals
	aliceEvents := drainEvents(aliceQueue)
	require.Len(t, eventsOfType(aliceEvents, msg.EventTypeScore), 1)
	scores := eventsOfType(aliceEvents, msg.EventTypeScores)
	require.Len(t, scores, 1)
	require.Len(t, scores[0].Scores, 1)
	assert.EqualValues(t, 2, scores[0].Scores[0].ID)

	// The host only sees the totals
	hostEvents := drainEvents(hostQueue)
	assert.Empty(t, eventsOfType(hostEvents, msg.EventTypeScore))
	assert.Len(t, eventsOfType(hostEvents, msg.EventTypeScores), 1)
}

func TestUnansweredMarkedIncorrect(t *testing.T) {
	game, _, _ := newTestGame(t, 10, 1)
	aliceQueue := NewEventQueue()
	bobQueue := NewEventQueue()
	_, err := game.Join(2, aliceQueue, "Alice")
	require.NoError(t, err)
	_, err = game.Join(3, bobQueue, "Bob")
	require.NoError(t, err)

	advanceToAnswers(t, game)
	drainEvents(aliceQueue)
	drainEvents(bobQueue)

	require.NoError(t, game.Answer(2, &types.Answer{Ty: types.QuestionTrueFalse, Bool: true}))
	// Bob never answers; the host forces marking
	require.NoError(t, game.HostAction(hostID, types.HostActionNext))
	require.Equal(t, types.StateMarked, game.State())

	aliceScore := eventsOfType(drainEvents(aliceQueue), msg.EventTypeScore)
	require.Len(t, aliceScore, 1)
	assert.Equal(t, types.ScoredCorrect, aliceScore[0].Score.Ty)

	bobScore := eventsOfType(drainEvents(bobQueue), msg.EventTypeScore)
	require.Len(t, bobScore, 1)
	assert.Equal(t, types.ScoredIncorrect, bobScore[0].Score.Ty)
}

func TestGameFinishesAfterLastQuestion(t *testing.T) {
	game, _, _ := newTestGame(t, 10, 1)
	_, err := game.Join(2, NewEventQueue(), "Alice")
	require.NoError(t, err)

	advanceToAnswers(t, game)
	require.NoError(t, game.Answer(2, &types.Answer{Ty: types.QuestionTrueFalse, Bool: true}))
	require.Equal(t, types.StateMarked, game.State())

	require.NoError(t, game.HostAction(hostID, types.HostActionNext))
	assert.Equal(t, types.StateFinished, game.State())

	// Advancing a finished game returns everyone to the lobby
	require.NoError(t, game.HostAction(hostID, types.HostActionNext))
	assert.Equal(t, types.StateLobby, game.State())
}

func TestSecondQuestionAdvances(t *testing.T) {
	game, _, hostQueue := newTestGame(t, 10, 2)
	_, err := game.Join(2, NewEventQueue(), "Alice")
	require.NoError(t, err)

	advanceToAnswers(t, game)
	require.NoError(t, game.Answer(2, &types.Answer{Ty: types.QuestionTrueFalse, Bool: true}))

	drainEvents(hostQueue)
	require.NoError(t, game.HostAction(hostID, types.HostActionNext))
	assert.Equal(t, types.StateAwaitingReady, game.State())

	// The next question went out rather than the game finishing
	events := drainEvents(hostQueue)
	assert.Len(t, eventsOfType(events, msg.EventTypeQuestion), 1)
}

func TestHostReset(t *testing.T) {
	game, _, hostQueue := newTestGame(t, 10, 2)
	_, err := game.Join(2, NewEventQueue(), "Alice")
	require.NoError(t, err)

	advanceToAnswers(t, game)
	require.NoError(t, game.Answer(2, &types.Answer{Ty: types.QuestionTrueFalse, Bool: true}))

	drainEvents(hostQueue)
	require.NoError(t, game.HostAction(hostID, types.HostActionReset))
	assert.Equal(t, types.StateLobby, game.State())

	states := eventsOfType(drainEvents(hostQueue), msg.EventTypeGameState)
	require.NotEmpty(t, states)
	assert.Equal(t, types.StateLobby, states[len(states)-1].State)

	// Scores were wiped: the first question marks from zero again
	advanceToAnswers(t, game)
	require.NoError(t, game.Answer(2, &types.Answer{Ty: types.QuestionTrueFalse, Bool: false}))
	scores := eventsOfType(drainEvents(hostQueue), msg.EventTypeScores)
	require.Len(t, scores, 1)
	require.Len(t, scores[0].Scores, 1)
	assert.EqualValues(t, 0, scores[0].Scores[0].Score)
}

func TestKickByHost(t *testing.T) {
	game, _, hostQueue := newTestGame(t, 10, 1)
	aliceQueue := NewEventQueue()
	bobQueue := NewEventQueue()
	_, err := game.Join(2, aliceQueue, "Alice")
	require.NoError(t, err)
	_, err = game.Join(3, bobQueue, "Bob")
	require.NoError(t, err)
	drainEvents(hostQueue)
	drainEvents(aliceQueue)
	drainEvents(bobQueue)

	require.NoError(t, game.RemovePlayer(hostID, 2, types.RemovedByHost))

	for _, queue := range []*EventQueue{hostQueue, aliceQueue, bobQueue} {
		kicked := eventsOfType(drainEvents(queue), msg.EventTypeKicked)
		require.Len(t, kicked, 1)
		assert.EqualValues(t, 2, kicked[0].ID)
		assert.Equal(t, types.RemovedByHost, kicked[0].Reason)
	}
}

func TestKickPermissions(t *testing.T) {
	game, _, _ := newTestGame(t, 10, 1)
	_, err := game.Join(2, NewEventQueue(), "Alice")
	require.NoError(t, err)
	_, err = game.Join(3, NewEventQueue(), "Bob")
	require.NoError(t, err)

	err = game.RemovePlayer(2, 3, types.RemovedByHost)
	assert.ErrorIs(t, err, types.ErrInvalidPermission)

	err = game.RemovePlayer(hostID, 99, types.RemovedByHost)
	assert.ErrorIs(t, err, types.ErrUnknownPlayer)
}

func TestSelfRemovalReportsDisconnect(t *testing.T) {
	game, _, hostQueue := newTestGame(t, 10, 1)
	_, err := game.Join(2, NewEventQueue(), "Alice")
	require.NoError(t, err)
	drainEvents(hostQueue)

	// A player leaving cannot claim a host kick
	require.NoError(t, game.RemovePlayer(2, 2, types.RemovedByHost))

	kicked := eventsOfType(drainEvents(hostQueue), msg.EventTypeKicked)
	require.Len(t, kicked, 1)
	assert.Equal(t, types.Disconnected, kicked[0].Reason)
}

func TestAllPlayersLeavingResetsGame(t *testing.T) {
	game, _, _ := newTestGame(t, 10, 1)
	_, err := game.Join(2, NewEventQueue(), "Alice")
	require.NoError(t, err)

	advanceToAnswers(t, game)
	require.NoError(t, game.RemovePlayer(2, 2, types.LostConnection))
	assert.Equal(t, types.StateLobby, game.State())
}

func TestHostLeavingStopsGame(t *testing.T) {
	game, registry, hostQueue := newTestGame(t, 10, 1)
	aliceQueue := NewEventQueue()
	_, err := game.Join(2, aliceQueue, "Alice")
	require.NoError(t, err)
	drainEvents(hostQueue)
	drainEvents(aliceQueue)

	require.NoError(t, game.RemovePlayer(hostID, hostID, types.Disconnected))
	assert.Equal(t, types.StateStopped, game.State())

	// Registry removal is scheduled off the game lock
	select {
	case token := <-registry.removed:
		assert.Equal(t, "TESTA", token.String())
	case <-time.After(time.Second):
		t.Fatal("expected the game to remove itself from the registry")
	}

	// Players are told the host left; the host gets a plain disconnect
	aliceKicked := eventsOfType(drainEvents(aliceQueue), msg.EventTypeKicked)
	require.Len(t, aliceKicked, 1)
	assert.EqualValues(t, 2, aliceKicked[0].ID)
	assert.Equal(t, types.HostDisconnect, aliceKicked[0].Reason)

	hostKicked := eventsOfType(drainEvents(hostQueue), msg.EventTypeKicked)
	require.Len(t, hostKicked, 1)
	assert.EqualValues(t, hostID, hostKicked[0].ID)
	assert.Equal(t, types.Disconnected, hostKicked[0].Reason)
}

func TestStoppedGameStaysStopped(t *testing.T) {
	game, registry, hostQueue := newTestGame(t, 10, 1)
	aliceQueue := NewEventQueue()
	_, err := game.Join(2, aliceQueue, "Alice")
	require.NoError(t, err)

	game.Stop()
	<-registry.removed
	drainEvents(hostQueue)
	drainEvents(aliceQueue)

	// A session tearing down after the stop finds nothing to remove,
	// and its last-player removal must not resurrect the lobby
	require.NoError(t, game.RemovePlayer(2, 2, types.LostConnection))
	assert.Equal(t, types.StateStopped, game.State())
	assert.Empty(t, drainEvents(hostQueue))

	// Host actions are equally inert
	require.NoError(t, game.HostAction(hostID, types.HostActionReset))
	assert.Equal(t, types.StateStopped, game.State())
	require.NoError(t, game.HostAction(hostID, types.HostActionNext))
	assert.Equal(t, types.StateStopped, game.State())
	assert.Empty(t, drainEvents(hostQueue))
}

func TestStopIdempotent(t *testing.T) {
	game, registry, _ := newTestGame(t, 10, 1)

	game.Stop()
	game.Stop()

	<-registry.removed
	select {
	case <-registry.removed:
		t.Fatal("expected a single registry removal")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, types.StateStopped, game.State())
}
