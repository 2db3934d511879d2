// Package auth provides pluggable authentication and rate limiting for
// kette applications.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// Auth runs as pipeline request middleware. A rejected request is answered
// directly with an HTML error page; an accepted request carries its
// Identity as a request annotation for handlers to read.
package auth
