// Package github is the remote fetcher for repository star counts.
//
// A [Client] issues exactly one GET /repos/{owner}/{name} per call and never
// retries. Failures are classified with pkg/errors codes:
//
//   - 401: CREDENTIAL_INVALID, notified as credential_invalid
//   - 403: RATE_LIMITED, notified as rate_limited
//   - any other non-2xx: REMOTE_STATUS, notified as generic
//   - transport failures: NETWORK_ERROR, logged but never notified
//
// The API key is read from a [credential.Source] on every request, so a key
// saved while a session is running takes effect on the next cache miss.
package github
