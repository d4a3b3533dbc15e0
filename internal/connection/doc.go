// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the single WebSocket connection for an authenticated session
//   - Attaches the session token to the handshake for server-side auth
//   - Reconnects with bounded exponential backoff, then stays disconnected
//     until the next explicit Connect (the liveness monitor provides one)
//   - Detects silently-dead connections via ping/pong heartbeats
//   - Fans out lifecycle notifications (connected, disconnected,
//     connect_error) to subscribers and decoded frames to the event bus
package connection
