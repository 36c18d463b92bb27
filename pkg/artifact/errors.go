package artifact

import "errors"

var (
	// ErrDownloadFailed covers network errors, timeouts and non-2xx responses
	ErrDownloadFailed = errors.New("download failed")

	// ErrCorruptArchive means the downloaded archive failed validation
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrBinaryMissingAfterExtract means extraction did not yield an executable
	ErrBinaryMissingAfterExtract = errors.New("binary missing after extract")
)
