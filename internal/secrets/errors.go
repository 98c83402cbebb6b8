package secrets

import (
	"errors"
	"strings"
)

// ConfigurationHelp points operators at the place secrets are configured.
const ConfigurationHelp = "set them in the platform secrets store (.streamlit/secrets.toml), " +
	"the process environment, or a local .env file"

// ErrMissingConfiguration is matched by errors.Is for every *MissingConfigurationError.
var ErrMissingConfiguration = errors.New("missing configuration")

// MissingConfigurationError lists required secrets that no source could supply.
// Keys keep the order in which they were requested.
type MissingConfigurationError struct {
	Keys []string
}

func (e *MissingConfigurationError) Error() string {
	noun := "secret"
	if len(e.Keys) != 1 {
		noun = "secrets"
	}
	return "missing required " + noun + ": " + strings.Join(e.Keys, ", ") + "; " + ConfigurationHelp
}

// Is reports whether target is ErrMissingConfiguration.
func (e *MissingConfigurationError) Is(target error) bool {
	return target == ErrMissingConfiguration
}
