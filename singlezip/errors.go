package singlezip

import "github.com/pkg/errors"

var (
	ErrInvalidName = errors.New("singlezip: invalid entry name")
	ErrFinished    = errors.New("singlezip: writer already finished")
	ErrBackend     = errors.New("singlezip: unknown compression backend")
	ErrFormat      = errors.New("singlezip: not a valid zip file")
)
