package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// SessionID is a process-wide unique identifier for a connected session
type SessionID = uint32

// ImageRef is the UUID key for an uploaded image
type ImageRef = uuid.UUID

// Image is an uploaded image stored within a game config
type Image struct {
	// Mime type of the image bytes
	Mime string
	// Raw image bytes
	Data []byte
}

// NameFiltering is the level of profanity filtering applied to
// player names when joining a game
type NameFiltering string

const (
	FilteringNone   NameFiltering = "None"
	FilteringLow    NameFiltering = "Low"
	FilteringMedium NameFiltering = "Medium"
	FilteringHigh   NameFiltering = "High"
)

// IsValid checks the filtering level is one of the known values
func (f NameFiltering) IsValid() bool {
	switch f {
	case FilteringNone, FilteringLow, FilteringMedium, FilteringHigh:
		return true
	default:
		return false
	}
}

// HostAction is an action only the host session may request
type HostAction string

const (
	// HostActionNext forces the game to progress to its next state
	HostActionNext HostAction = "Next"
	// HostActionReset returns the game and all player state to the lobby
	HostActionReset HostAction = "Reset"
)

func (a HostAction) IsValid() bool {
	return a == HostActionNext || a == HostActionReset
}

// RemoveReason describes why a player was removed from a game
type RemoveReason string

const (
	// RemovedByHost is a manual kick by the host
	RemovedByHost RemoveReason = "RemovedByHost"
	// HostDisconnect is sent to players when the host leaves, ending the game
	HostDisconnect RemoveReason = "HostDisconnect"
	// LostConnection is a heartbeat timeout or transport failure
	LostConnection RemoveReason = "LostConnection"
	// Disconnected is a player leaving of their own accord
	Disconnected RemoveReason = "Disconnected"
)

// GameState is the host-driven state a game moves through. Initial
// state is Lobby; Stopped is terminal.
type GameState string

const (
	StateLobby           GameState = "Lobby"
	StateStarting        GameState = "Starting"
	StateAwaitingReady   GameState = "AwaitingReady"
	StatePreQuestion     GameState = "PreQuestion"
	StateAwaitingAnswers GameState = "AwaitingAnswers"
	StateMarked          GameState = "Marked"
	StateFinished        GameState = "Finished"
	StateStopped         GameState = "Stopped"
)

// QuestionType discriminates the different kinds of questions and the
// matching kinds of answers
type QuestionType string

const (
	QuestionSingle    QuestionType = "Single"
	QuestionMultiple  QuestionType = "Multiple"
	QuestionTrueFalse QuestionType = "TrueFalse"
	QuestionTyper     QuestionType = "Typer"
)

func (t QuestionType) IsValid() bool {
	switch t {
	case QuestionSingle, QuestionMultiple, QuestionTrueFalse, QuestionTyper:
		return true
	default:
		return false
	}
}

// ImageFit is the client-side fit mode for question images
type ImageFit string

const (
	ImageFitContain ImageFit = "Contain"
	ImageFitCover   ImageFit = "Cover"
	ImageFitWidth   ImageFit = "Width"
	ImageFitHeight  ImageFit = "Height"
)

func (f ImageFit) IsValid() bool {
	switch f {
	case ImageFitContain, ImageFitCover, ImageFitWidth, ImageFitHeight:
		return true
	default:
		return false
	}
}

// QuestionImage references an uploaded image shown with a question
type QuestionImage struct {
	// UUID of the uploaded image
	UUID ImageRef `json:"uuid"`
	// Client side image fit mode
	Fit ImageFit `json:"fit"`
}

// AnswerValue is one selectable answer on a choice question
type AnswerValue struct {
	// The display text for the answer
	Value string `json:"value"`
	// Whether this answer is a correct one. Never serialized to clients.
	Correct bool `json:"-"`
}

// answerValueUpload mirrors AnswerValue including the hidden fields for
// decoding uploaded quiz configs
type answerValueUpload struct {
	Value   string `json:"value"`
	Correct bool   `json:"correct"`
}

// Scoring holds the per-question min/max/bonus score amounts
type Scoring struct {
	// Minimum score awarded for the longest time taken
	MinScore uint32 `json:"min_score"`
	// Maximum score awarded for the shortest time taken
	MaxScore uint32 `json:"max_score"`
	// Amount awarded on top when answered within the bonus time
	BonusScore uint32 `json:"bonus_score"`
}

// Question is a single quiz question. The variant-specific fields are
// flattened to the question level and discriminated by Ty. Fields that
// would reveal the correct answer are hidden from client serialization
// by the custom MarshalJSON below.
type Question struct {
	// The type of question
	Ty QuestionType
	// The text of the question
	Text string
	// Optional image shown with the question
	Image *QuestionImage
	// Time given to answer the question (ms)
	AnswerTime uint64
	// Time within which the bonus score is granted (ms)
	BonusScoreTime uint64
	// Point scoring for the question
	Scoring Scoring

	// Answers for Single and Multiple questions
	Answers []AnswerValue
	// The answer for TrueFalse questions. Hidden from clients.
	Answer bool
	// Accepted answers for Typer questions. Hidden from clients.
	TyperAnswers []string
	// Whether Typer matching ignores case. Hidden from clients.
	IgnoreCase bool
}

// CorrectCount counts the answers flagged correct on a choice question
func (q *Question) CorrectCount() int {
	count := 0
	for _, answer := range q.Answers {
		if answer.Correct {
			count++
		}
	}
	return count
}

type questionUpload struct {
	Ty             QuestionType        `json:"ty"`
	Text           string              `json:"text"`
	Image          *QuestionImage      `json:"image,omitempty"`
	AnswerTime     uint64              `json:"answer_time"`
	BonusScoreTime uint64              `json:"bonus_score_time"`
	Scoring        Scoring             `json:"scoring"`
	Answers        []answerValueUpload `json:"answers,omitempty"`
	Answer         bool                `json:"answer,omitempty"`
	IgnoreCase     bool                `json:"ignore_case,omitempty"`
	TyperAnswers   []string            `json:"typer_answers,omitempty"`
}

// UnmarshalJSON decodes the full uploaded question shape including the
// hidden marking fields
func (q *Question) UnmarshalJSON(data []byte) error {
	var upload questionUpload
	if err := json.Unmarshal(data, &upload); err != nil {
		return err
	}
	q.Ty = upload.Ty
	q.Text = upload.Text
	q.Image = upload.Image
	q.AnswerTime = upload.AnswerTime
	q.BonusScoreTime = upload.BonusScoreTime
	q.Scoring = upload.Scoring
	q.Answer = upload.Answer
	q.IgnoreCase = upload.IgnoreCase
	q.TyperAnswers = upload.TyperAnswers
	q.Answers = nil
	for _, answer := range upload.Answers {
		q.Answers = append(q.Answers, AnswerValue(answer))
	}
	// Typer answers may also arrive on the answers key as bare values
	if upload.Ty == QuestionTyper && len(q.TyperAnswers) == 0 && len(upload.Answers) > 0 {
		for _, answer := range upload.Answers {
			q.TyperAnswers = append(q.TyperAnswers, answer.Value)
		}
		q.Answers = nil
	}
	return nil
}

// questionClient is the projection of a question sent to clients: the
// marking data (correct flags, TrueFalse answer, Typer answers) is omitted
type questionClient struct {
	Ty             QuestionType   `json:"ty"`
	Text           string         `json:"text"`
	Image          *QuestionImage `json:"image,omitempty"`
	AnswerTime     uint64         `json:"answer_time"`
	BonusScoreTime uint64         `json:"bonus_score_time"`
	Scoring        Scoring        `json:"scoring"`
	Answers        []AnswerValue  `json:"answers,omitempty"`
	CorrectAnswers int            `json:"correct_answers,omitempty"`
}

func (q *Question) MarshalJSON() ([]byte, error) {
	client := questionClient{
		Ty:             q.Ty,
		Text:           q.Text,
		Image:          q.Image,
		AnswerTime:     q.AnswerTime,
		BonusScoreTime: q.BonusScoreTime,
		Scoring:        q.Scoring,
	}
	switch q.Ty {
	case QuestionSingle:
		client.Answers = q.Answers
	case QuestionMultiple:
		client.Answers = q.Answers
		// Clients need the expected pick count for multiple choice
		client.CorrectAnswers = q.CorrectCount()
	}
	return json.Marshal(client)
}

// GameConfig is the immutable configuration of a game, shared read-only
// across every session bound to it. Serializing a config produces the
// public projection only; questions and images travel separately.
type GameConfig struct {
	// The name of the game
	Name string
	// Text displayed under the game name
	Text string
	// Maximum number of players allowed in this game
	MaxPlayers int
	// Filtering applied to player names
	Filtering NameFiltering
	// The ordered game questions
	Questions []*Question
	// Uploaded image UUIDs mapped to their image data
	Images map[ImageRef]Image
}

func (c *GameConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name       string `json:"name"`
		Text       string `json:"text"`
		MaxPlayers int    `json:"max_players"`
	}{Name: c.Name, Text: c.Text, MaxPlayers: c.MaxPlayers})
}

// UnmarshalJSON decodes the creator upload shape. Images arrive as
// separate multipart parts so the map is initialized empty here.
func (c *GameConfig) UnmarshalJSON(data []byte) error {
	var upload struct {
		Name       string        `json:"name"`
		Text       string        `json:"text"`
		MaxPlayers int           `json:"max_players"`
		Filtering  NameFiltering `json:"filtering"`
		Questions  []*Question   `json:"questions"`
	}
	if err := json.Unmarshal(data, &upload); err != nil {
		return err
	}
	if upload.Filtering == "" {
		upload.Filtering = FilteringMedium
	}
	c.Name = upload.Name
	c.Text = upload.Text
	c.MaxPlayers = upload.MaxPlayers
	c.Filtering = upload.Filtering
	c.Questions = upload.Questions
	c.Images = make(map[ImageRef]Image)
	return nil
}

// Answer is a client-submitted answer to the current question. The
// populated fields depend on Ty, mirroring the question variants.
type Answer struct {
	// The type of answer
	Ty QuestionType
	// Chosen answer index for Single
	Index int
	// Chosen answer indexes for Multiple
	Indexes []int
	// Boolean answer for TrueFalse
	Bool bool
	// Text answer for Typer
	Text string
}

// Matches reports whether this answer is the right shape for the
// provided question
func (a *Answer) Matches(q *Question) bool {
	return a.Ty == q.Ty
}

// UnmarshalJSON decodes the tagged answer union. The "answer" key holds
// a different JSON type per variant so decoding dispatches on ty first.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var head struct {
		Ty QuestionType `json:"ty"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	a.Ty = head.Ty
	switch head.Ty {
	case QuestionSingle:
		var body struct {
			Answer int `json:"answer"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		a.Index = body.Answer
	case QuestionMultiple:
		var body struct {
			Answers []int `json:"answers"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		a.Indexes = body.Answers
	case QuestionTrueFalse:
		var body struct {
			Answer bool `json:"answer"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		a.Bool = body.Answer
	case QuestionTyper:
		var body struct {
			Answer string `json:"answer"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		a.Text = body.Answer
	default:
		return fmt.Errorf("unknown answer type %q", head.Ty)
	}
	return nil
}

// ScoreType discriminates the score union
type ScoreType string

const (
	ScoredCorrect   ScoreType = "Correct"
	ScoredIncorrect ScoreType = "Incorrect"
	ScoredPartial   ScoreType = "Partial"
)

// Score is the marked result of a single answer
type Score struct {
	Ty    ScoreType
	Value uint32
	// Count and Total are only present on Partial scores
	Count uint32
	Total uint32
}

// ScoreCorrect creates a fully correct score worth the provided value
func ScoreCorrect(value uint32) Score {
	return Score{Ty: ScoredCorrect, Value: value}
}

// ScoreIncorrect creates an incorrect score worth nothing
func ScoreIncorrect() Score {
	return Score{Ty: ScoredIncorrect}
}

// ScorePartial creates a partially correct score where count of total
// correct answers were chosen
func ScorePartial(value, count, total uint32) Score {
	return Score{Ty: ScoredPartial, Value: value, Count: count, Total: total}
}

// Points is the value this score adds to a player total; zero when
// incorrect
func (s Score) Points() uint32 {
	if s.Ty == ScoredIncorrect {
		return 0
	}
	return s.Value
}

func (s Score) MarshalJSON() ([]byte, error) {
	switch s.Ty {
	case ScoredCorrect:
		return json.Marshal(struct {
			Ty    ScoreType `json:"ty"`
			Value uint32    `json:"value"`
		}{Ty: s.Ty, Value: s.Value})
	case ScoredPartial:
		return json.Marshal(struct {
			Ty    ScoreType `json:"ty"`
			Value uint32    `json:"value"`
			Count uint32    `json:"count"`
			Total uint32    `json:"total"`
		}{Ty: s.Ty, Value: s.Value, Count: s.Count, Total: s.Total})
	default:
		return json.Marshal(struct {
			Ty ScoreType `json:"ty"`
		}{Ty: ScoredIncorrect})
	}
}

// ScoreEntry is one player's running total
type ScoreEntry struct {
	ID    SessionID
	Score uint32
}

// ScoreCollection is the ordered set of player totals broadcast after
// marking. Serialized as a list of [id, total] pairs so join order is
// preserved on the wire.
type ScoreCollection []ScoreEntry

func (c ScoreCollection) MarshalJSON() ([]byte, error) {
	pairs := make([][2]uint64, 0, len(c))
	for _, entry := range c {
		pairs = append(pairs, [2]uint64{uint64(entry.ID), uint64(entry.Score)})
	}
	return json.Marshal(pairs)
}
