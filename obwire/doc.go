// Package obwire adapts the obtree core to a host process
// that exchanges CBOR-encoded requests and responses.
//
// The host sends a stream of [Request] values and receives one [Response] per request,
// matched by ID; responses may arrive out of order,
// since requests are handled concurrently.
// The core itself never sees any type from this package.
//
// Every failure is reported through [Response.Code],
// so that the host can tell a bad chunk ([CodeVerificationMismatch])
// from broken metadata ([CodeMalformedOutboard]) without parsing messages.
package obwire
