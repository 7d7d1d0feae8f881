// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Maintains one persistent WebSocket to the server's /ws endpoint
//   - Arms a connection timeout on every dial
//   - Reconnects with capped exponential backoff plus jitter on unexpected closure
//   - Gives up after a bounded number of attempts until a forced Connect
//   - Re-emits dice_roll and campaign_update messages as local notifications
//
// A close with code 1000 (normal closure) is treated as intentional and never
// triggers a reconnect.
package connection
