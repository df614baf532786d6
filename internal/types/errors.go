package types

// ServerError is the stable wire-level error taxonomy. Values are sent
// to clients verbatim inside Error responses so they must not change.
type ServerError string

const (
	// ErrMalformedMessage indicates a client frame that could not be parsed
	ErrMalformedMessage ServerError = "MalformedMessage"
	// ErrInvalidToken indicates a token or prepared UUID that matched no game
	ErrInvalidToken ServerError = "InvalidToken"
	// ErrInvalidNameLength indicates a name outside the 1..30 range after trimming
	ErrInvalidNameLength ServerError = "InvalidNameLength"
	// ErrUsernameTaken indicates the requested name is already in use
	ErrUsernameTaken ServerError = "UsernameTaken"
	// ErrInappropriateName indicates the name failed the configured filter level
	ErrInappropriateName ServerError = "InappropriateName"
	// ErrNotJoinable indicates the game has already started or finished
	ErrNotJoinable ServerError = "NotJoinable"
	// ErrCapacityReached indicates the game is at max player capacity
	ErrCapacityReached ServerError = "CapacityReached"
	// ErrUnknownPlayer indicates an action targeting a player that wasn't found
	ErrUnknownPlayer ServerError = "UnknownPlayer"
	// ErrUnexpected indicates something went wrong internally
	ErrUnexpected ServerError = "Unexpected"
	// ErrInvalidPermission indicates the session lacked permission for the action
	ErrInvalidPermission ServerError = "InvalidPermission"
	// ErrUnexpectedMessage indicates a message valid in shape but not in the current state
	ErrUnexpectedMessage ServerError = "UnexpectedMessage"
	// ErrInvalidAnswer indicates an answer that doesn't match the current question type
	ErrInvalidAnswer ServerError = "InvalidAnswer"
)

func (e ServerError) Error() string {
	return string(e)
}

// AsServerError maps any error onto the wire taxonomy, collapsing
// unknown errors to Unexpected so internal detail never leaks.
func AsServerError(err error) ServerError {
	if se, ok := err.(ServerError); ok {
		return se
	}
	return ErrUnexpected
}
