// Package guest provides the guest side of the waPC calling convention: a
// dispatch table mapping operation names to handlers, and the bridge a
// handler uses to call back into the host.
//
// The dispatch table is an explicit Registry value rather than hidden
// process-global state, so guests stay testable in isolation: hand the
// registry a fake HostCaller and drive handlers directly.
//
// A registry is populated once, by the host invoking the guest's
// initialization entry point, and is read-only afterwards. Registering the
// same name twice overwrites the earlier handler; the last write wins.
package guest
