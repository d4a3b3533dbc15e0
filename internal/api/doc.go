// Package api provides the REST order API client.
//
// The socket layer is a low-latency notification channel, not the system of
// record: this client backs it with the authoritative order lists (full
// resync after every reconnect-and-rejoin cycle) and originates status and
// payment transitions via PUT. The reconciler trusts the resulting socket
// event, never the PUT response, as confirmation.
package api
