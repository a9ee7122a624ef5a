package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room id or code resolves to nothing.
	ErrRoomNotFound = errors.New("room not found")
	// ErrBankNotFound indicates the question bank could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrCategoryNotFound indicates a selected category is not in the bank.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrPlayerNotFound is returned when an action references an unknown player.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrNameTaken is returned when a display name is in use by a connected player.
	ErrNameTaken = errors.New("name already taken")
	// ErrNameInvalid is returned for empty or over-long display names.
	ErrNameInvalid = errors.New("invalid player name")
	// ErrNoActiveQuestion is returned for submissions outside a question window.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrSubmissionClosed is returned once the answer window has been locked.
	ErrSubmissionClosed = errors.New("submission window closed")
	// ErrAlreadySubmitted is returned for a second submission to the same question.
	ErrAlreadySubmitted = errors.New("answer already submitted")
	// ErrWrongState is returned when the state machine does not permit an action.
	ErrWrongState = errors.New("action not allowed in current state")
	// ErrGameEnded is returned for any mutation after the host ended the game.
	ErrGameEnded = errors.New("game has ended")
)
