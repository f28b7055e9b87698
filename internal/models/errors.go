package models

import "errors"

var (
	// ErrValidation marks malformed requests (missing fields, unknown genre, bad body).
	ErrValidation = errors.New("validation failed")
	// ErrUpstream marks failures of text, image or speech providers, including timeouts.
	ErrUpstream = errors.New("upstream call failed")
	// ErrStorage marks object store and index failures.
	ErrStorage = errors.New("storage failed")
	// ErrNotFound marks empty catalog lookups and missing stories.
	ErrNotFound = errors.New("not found")
)
