package owners

import (
	"errors"
	"fmt"
)

// InvalidConfigError reports owner config content that could not be parsed.
// The message is safe to show to users (it names the file and the parse
// problem, not internal state).
type InvalidConfigError struct {
	Path string
	Msg  string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid owner config %s: %s", e.Path, e.Msg)
}

// NewInvalidConfigError builds an InvalidConfigError for the given tree path.
func NewInvalidConfigError(path, format string, args ...interface{}) error {
	return &InvalidConfigError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// IsInvalidConfig reports whether err is an InvalidConfigError anywhere in
// its chain.
func IsInvalidConfig(err error) bool {
	var ice *InvalidConfigError
	return errors.As(err, &ice)
}

// AsInvalidConfig extracts the InvalidConfigError from err's chain, if any.
func AsInvalidConfig(err error) (*InvalidConfigError, bool) {
	var ice *InvalidConfigError
	if errors.As(err, &ice) {
		return ice, true
	}
	return nil, false
}
