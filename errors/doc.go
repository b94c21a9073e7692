// Package errors provides structured error types for the waPC runtime.
//
// Errors carry the processing phase (load, instantiate, invoke, ...) and a
// kind (closed, not_found, guest_fault, ...) so callers can match failure
// classes with errors.Is without parsing messages:
//
//	_, err := inst.Invoke(ctx, "frobnicate", payload)
//	if errors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindGuestFault}) {
//	    // the guest reported the failure itself
//	}
//
// Guest-reported errors keep the guest's message verbatim in Detail; the
// runtime never rewrites what a guest chose to report.
package errors
