// Package adapter holds the capability contract between the session
// manager and a rig-control daemon transport, plus the normalized error
// taxonomy transports map their failures onto.
//
// Implementations live in subpackages: rigctl (TCP line protocol against
// a rigctld-style daemon) and simrig (in-memory simulator for tests and
// development). Both must pass the conformance suite in
// internal/adaptertest.
package adapter
