// Package reqflow provides a declarative HTTP request pipeline.
//
// Callers describe a call as a [Descriptor] (base URL, path, method, headers,
// parameters, encoding and retry policy). A [Service] turns the descriptor
// into a transport call, classifies the HTTP status, decodes the body and
// retries failed attempts under the descriptor's [RetryPolicy]. Every failure
// surfaces as an [*Error] whose kind can be matched with [errors.Is].
package reqflow
