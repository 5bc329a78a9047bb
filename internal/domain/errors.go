package domain

import "errors"

// Pipeline error kinds. Stage failures wrap one of these together with the cause.
var (
	ErrConfig      = errors.New("configuration error")
	ErrFetch       = errors.New("fetch error")
	ErrSummarize   = errors.New("summarize error")
	ErrPublish     = errors.New("publish error")
	ErrPersistence = errors.New("persistence error")
)
