// Package auth turns service-account key material into an OAuth2 bearer token for the Google Play Developer API.
//
// Key material is located by a [KeySource]: a local path, a file:// URI, or an http(s) URL fetched into memory.
// Both JSON service-account keys and legacy PKCS#12 (.p12) keys are accepted.
//
// The token acquired by [Provider.Authenticate] is handed out unchanged for the rest of the run; nothing in this
// package refreshes it.
package auth
