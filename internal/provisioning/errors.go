package provisioning

import "errors"

var (
	// ErrNotConfigured is returned by Store.Get for a key with no stored value.
	ErrNotConfigured = errors.New("provisioning: key not configured")

	// ErrUnknownKey is returned when a key is not one of Keys().
	ErrUnknownKey = errors.New("provisioning: unknown key")

	// ErrConfigurationMissing is returned when a required identity value is
	// absent from both the store and the configuration file. It is fatal.
	ErrConfigurationMissing = errors.New("provisioning: configuration missing")

	// ErrInvalidCredentials is returned when stored PEM material cannot be
	// loaded as a certificate, key or CA bundle.
	ErrInvalidCredentials = errors.New("provisioning: invalid credentials")
)
