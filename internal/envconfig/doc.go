// Package envconfig loads cookie session settings from COOKIE_SESSION_*
// environment variables for the demo server and load generator.
package envconfig
