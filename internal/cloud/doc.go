// Package cloud talks to the appliance vendor's REST API.
//
// Client is a thin transport: it fetches the device list and sends
// actions. Poller keeps the shared appliance.Cache filled from the device
// list, backing off while the API is failing and keeping the last good
// contents. Dispatcher queues actions submitted by entities and delivers
// them from a single worker so a slow API never blocks a command caller.
package cloud
