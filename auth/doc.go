// Package auth provides pluggable credential providers for the httpkit
// client: static bearer tokens, API keys, and JWTs with expiry checking.
//
// A Provider produces the headers that authenticate an outbound request.
// The client checks Valid before attaching headers and fails fast with
// an authentication error rather than sending a doomed request.
//
//	provider := auth.NewJWTProvider(auth.JWTConfig{
//	    Source: myTokenSource,
//	})
//
// JWT tokens are cached in an explicit TokenCache with an injectable
// clock; refreshes are deduplicated so concurrent calls trigger a
// single fetch. There is no process-wide token state.
package auth
