// Package config loads and validates process configuration: HTTP
// listener, rig daemon target, session timing classes, auth, audit, and
// relay settings. Precedence is defaults, then YAML file, then
// RIGPROXY_* environment variables.
package config
