// Package httpx provides the net/http transport for the reqflow pipeline.
//
// Transport sends built requests through a standard http.Client, applies
// the per-attempt request timeout, optionally paces requests with a token
// bucket and optionally maps low-level network failures onto the reqflow
// error taxonomy.
package httpx
