package compose

import "errors"

var (
	// errCommandFailed indicates a compose invocation exited with an error.
	errCommandFailed = errors.New("compose command failed")
	// errParseConfig indicates `compose config --format json` returned unusable output.
	errParseConfig = errors.New("failed to parse compose config")
	// errParseContainers indicates `compose ps --format json` returned unusable output.
	errParseContainers = errors.New("failed to parse compose containers")
)
