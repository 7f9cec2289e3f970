package underlog

import "errors"

// Sentinel errors for library operations.
var (
	ErrBadOptionsFraming = errors.New("options must be framed by '[' and ']'")
	ErrRenderInFlight    = errors.New("a layout pass is already running")
	ErrImageNotFound     = errors.New("image not found")
	ErrPDFConversion     = errors.New("PDF conversion failed")
	ErrNoPages           = errors.New("no pages to convert")

	// Config validation errors.
	ErrInvalidPageSize = errors.New("invalid page dimensions")
	ErrInvalidMargin   = errors.New("invalid margin")
	ErrInvalidFontSize = errors.New("invalid font size")
	ErrInvalidRatio    = errors.New("invalid ratio")
	ErrConfigNotFound  = errors.New("config file not found")
	ErrConfigParse     = errors.New("failed to parse config")
)
