// Package services defines the [Publisher] interface for app-distribution platforms and implements it for Google Play.
//
// # Publisher Interface
//
// A publish run is a server-side transaction built from five calls against one draft edit:
// open, upload, assign track, commit and (on failure) delete. [Publisher] exposes those calls, plus mapping-file
// upload and edit validation.
//
// # Outcomes Instead of Errors
//
// Every call returns an [Outcome] rather than an error. Transport failures, timeouts, 4xx/5xx responses and
// malformed bodies all become Failure(message), so callers make decisions over plain values.
//
// # Google Play Implementation
//
// [PlayStoreService] talks to the Google Play Developer API v3 over an authorized [http.Client] (see package
// auth). Error bodies are decoded with googleapi.CheckResponse so the server's own message reaches the operator.
// Requests are paced client-side with a [rate.Limiter]; nothing is retried.
package services
