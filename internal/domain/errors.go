package domain

import "errors"

var (
	// ErrNotFound is returned when a session identifier was never issued or has been deleted.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for malformed requests, such as an out-of-range recipe index.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoRecipeSelected is returned when a voice session is requested before a recipe was selected.
	ErrNoRecipeSelected = errors.New("no recipe selected")

	// ErrConfiguration is returned when a required credential or setting is missing.
	ErrConfiguration = errors.New("configuration error")

	// ErrConnection is returned when the realtime endpoint cannot be reached or does not acknowledge a handshake.
	ErrConnection = errors.New("connection error")

	// ErrAlreadyConfigured is returned when a voice client is configured twice.
	ErrAlreadyConfigured = errors.New("already configured")

	// ErrVoiceActive is returned when a session already has a live voice client.
	ErrVoiceActive = errors.New("assistant already active")

	// ErrUpstream is returned when the language model fails, refuses, or returns unusable output.
	ErrUpstream = errors.New("upstream error")
)
