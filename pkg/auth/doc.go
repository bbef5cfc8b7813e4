// Package auth provides pluggable authentication for the relais gateway.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from the
// invocation path. The authenticated subject becomes the caller identity
// for function calls made through the gateway, which is what the agent
// gate on agent-kind functions checks against.
package auth
