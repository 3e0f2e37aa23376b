// Package task defines the domain types of the provider-tasking engine:
// tasks, their lifecycle status, audit events, creation requests and the
// typed errors every engine operation returns.
//
// The package has no storage or transport dependencies. Store
// implementations and the HTTP/CLI surfaces all share these types.
package task
