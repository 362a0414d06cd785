// Package errkind defines the five error-kind sentinels spec.md §7
// assigns every protocol-facing error, so a caller can classify a
// failure with errors.Is regardless of which layer produced it, instead
// of string-matching error messages.
package errkind

import "github.com/pkg/errors"

var (
	// Argument marks a caller-supplied value that was invalid on its
	// face (an empty required field, a malformed filter expression).
	Argument = errors.New("errkind: invalid argument")
	// Transient marks a bounded-wait call that timed out without making
	// progress; the caller may retry.
	Transient = errors.New("errkind: transient, would block")
	// Protocol marks a peer violating the NETCONF wire contract.
	Protocol = errors.New("errkind: protocol violation")
	// Schema marks a failure attributable to the schema-context
	// collaborator (module load, validation).
	Schema = errors.New("errkind: schema error")
	// Transport marks a failure in the underlying byte stream.
	Transport = errors.New("errkind: transport error")
)
