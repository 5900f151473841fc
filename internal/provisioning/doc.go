// Package provisioning resolves the device identity needed to reach the
// shadow service: thing name, region, MQTT client id and TLS credentials.
//
// Identity values are read from the device_config table first and fall back
// to the seeds in the YAML configuration. A device that cannot produce a
// thing name, or TLS credentials when TLS is enabled, fails with
// ErrConfigurationMissing and never starts synchronising.
package provisioning
