package ai

import "errors"

var (
	// ErrInvalidConfig indicates an AI configuration failed validation.
	ErrInvalidConfig = errors.New("ai config")

	// ErrUnknownSpace indicates no embedding space exists for a kind and generation.
	ErrUnknownSpace = errors.New("unknown embedding space")

	// ErrNoCurrentSpace indicates a kind has no current embedding generation.
	ErrNoCurrentSpace = errors.New("no current embedding space")

	// ErrEmptyResponse indicates a model returned no usable output.
	ErrEmptyResponse = errors.New("empty model response")
)
