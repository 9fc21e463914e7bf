package tocha

import "github.com/kailas-cloud/tocha/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrRequestValidation = domain.ErrRequestValidation
	ErrBackendQuery      = domain.ErrBackendQuery
	ErrIndexing          = domain.ErrIndexing
	ErrAssembly          = domain.ErrAssembly
	ErrWriteBack         = domain.ErrWriteBack
)
