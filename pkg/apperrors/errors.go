package apperrors

import "errors"

var (
	ErrMissingReportID    = errors.New("record has no report id")
	ErrStorageUnavailable = errors.New("warehouse storage unavailable")
)
