// Package reconcile implements the Order State Reconciler.
//
// The reconciler owns two view-state lists: orders assigned to this delivery
// identity and orders awaiting payment. Both are mutated only by applying
// server events; UI layers get read-only snapshots and originate transitions
// through AdvanceStatus, never by editing the lists.
//
// Event application is idempotent: duplicate delivery (possible on some
// reconnect configurations) never duplicates a record or fires a second
// assignment alert. Races between events for the same order resolve strictly
// by arrival order: an update that arrives after the order was unassigned
// is dropped.
//
// The socket is a notification channel, not the system of record. Missed
// events are corrected by Resync, a full-list fetch over REST that the
// session bridge runs after every reconnect-and-rejoin cycle.
package reconcile
