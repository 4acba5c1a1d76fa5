// Package api implements the HTTP REST API and WebSocket server for Gray
// Logic Appliances.
//
// This package provides:
//   - REST endpoints to list entities, send turn_on/turn_off/speed commands,
//     and disable or remove entities host-side
//   - Read access to the cached appliance records and an on-demand refresh
//   - The command log, paged newest first
//   - A WebSocket hub that streams entity.state_changed events, filtered by
//     platform or entity
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Commands
//
// Commands are fire-and-forget. A 202 means the action was queued for the
// cloud; the entity's state only changes once a later poll reports it.
//
//	POST /api/v1/entities/fan/000123456789/speed   {"speed": 3}
//
// Entities are addressed by platform and unique id because a hood's fan and
// light share the same unique id.
package api
