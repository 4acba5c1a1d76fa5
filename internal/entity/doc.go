// Package entity projects cached appliance records into host entities.
//
// Each entity is one (device, aspect) pair: a binary sensor per signal key,
// a fan for cooker hoods, a light for appliances with a lamp. Entities hold
// a copy of the last record they read. Update re-reads the shared cache
// (look-aside, never push) and keeps the old copy on a miss.
//
// Commands are fire-and-forget. TurnOn on a light submits
// {device_id, body: {light: 1}} to the Dispatcher and changes nothing
// locally; the next poll reflects the appliance's acknowledgement.
//
// The Registry replaces any process-wide list of entities: discovery adds
// to it, PushAll walks it.
package entity
