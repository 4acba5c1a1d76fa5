// Package host exposes appliance entities to a home-automation platform
// using MQTT discovery.
//
// For every entity the host publishes a retained discovery config under
// the platform's discovery prefix and a retained JSON state under
// graylogic/appliance/{platform}/{unique_id}/state. Commands arrive on the
// matching /command topic as {"command":"turn_on","speed":2}.
//
// Registered entities are persisted in SQLite together with a host-side
// disabled flag. Disabled entities report false from IsRegistered, which
// is how state pushes learn to skip them.
package host
