// Package providers holds the service providers the application kernel
// registers: configuration parameters, YAML definitions and the deferred
// inspector router.
package providers
