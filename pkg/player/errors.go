package player

import "errors"

// Playback and queue mutation errors
var (
	ErrEmptyQueue      = errors.New("queue is empty")
	ErrEmptyHistory    = errors.New("no tracks in history")
	ErrOutOfRange      = errors.New("index out of range")
	ErrLiveSeek        = errors.New("cannot seek in a live stream")
	ErrNotPlaying      = errors.New("nothing is playing")
	ErrAlreadyPlaying  = errors.New("already playing")
	ErrPlayerDestroyed = errors.New("player has been destroyed")
)
