// Package internal holds goAuthClient implementation packages that are not
// part of the public API.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: login and refresh exchanges against the auth API
//
// Nothing here may be imported from outside the goAuthClient module.
package internal
