// Package integrations provides the HTTP clients chocorepack talks to.
//
// # Overview
//
// The shared [Client] carries default headers and a retry policy and knows
// how to stream a response body to disk atomically. It is used by:
//
//   - [chocolatey]: the package registry (`GET {endpoint}/{id}/{version}`)
//   - the installer mirror in pkg/mirror, which downloads the URLs found in
//     install scripts
//
// # Errors
//
// 404 responses map to [ErrNotFound]. Connection failures and 5xx responses
// map to [ErrNetwork] wrapped in an [httputil.RetryableError], so a
// [httputil.Policy] with more than one attempt retries them.
//
// [chocolatey]: github.com/matzehuels/chocorepack/pkg/integrations/chocolatey
// [httputil.RetryableError]: github.com/matzehuels/chocorepack/pkg/httputil.RetryableError
// [httputil.Policy]: github.com/matzehuels/chocorepack/pkg/httputil.Policy
package integrations
