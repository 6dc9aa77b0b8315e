// Package ably is a client library for the Ably REST API.
//
// Get started by constructing a client with NewREST or NewRESTWithKey, then
// use its Channels, Auth, Push, Stats, Time and Request members.
//
// Authentication
//
// A client authenticates with either basic or token auth. Basic auth sends
// the API key with each request and is used when a key is configured, token
// auth is not requested and no client id is set. Otherwise the client obtains
// tokens on demand from an auth callback, an auth URL or by signing token
// requests with its key, caches the current token and renews it shortly
// before it expires or when the service rejects it. A client that only has a
// token and no means of renewing it fails once that token expires.
//
// Concurrent requests share the cached token; concurrent renewals are
// collapsed into a single token request.
//
// Fallback hosts
//
// Requests that fail with a connectivity error, a timeout or a 5xx response
// are retried on fallback hosts, up to the configured retry count. A fallback
// host that succeeds is used first for subsequent requests until the
// fallback retry timeout elapses.
//
// Paginated results
//
// Most requests to the Ably REST API return a single page of results, with
// hyperlinks to the first and next pages in the whole collection of results.
// Such requests give a PaginatedResult, whose Items method gives the current
// page and whose Next and First methods fetch another page. Next gives nil
// after the last page:
//
//	page, err := channel.History(ctx)
//	for ; err == nil && page != nil; page, err = page.Next(ctx) {
//		for _, msg := range page.Items() {
//			fmt.Println(msg.Name, msg.Data)
//		}
//	}
package ably
