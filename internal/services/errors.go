package services

import "errors"

// Dashboard service errors
var (
	ErrInvalidFilter       = errors.New("invalid filter request")
	ErrInvalidExportFormat = errors.New("invalid export format")
)
