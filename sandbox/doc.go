// Package sandbox implements the remote-execution layer: a provider-agnostic
// four-operation contract (create-or-attach, shell execution, file upload,
// file download), a Binding tracking one instance's liveness and setup
// lifecycle, and a Router that transparently forwards filesystem and shell
// operations either to the local backend or to the active binding.
//
// Provider implementations live in subpackages (modal, daytona, runloop) and
// plug in behind the Provider interface; the Router never depends on
// provider-specific semantics.
package sandbox
