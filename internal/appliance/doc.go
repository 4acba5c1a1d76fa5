// Package appliance holds the typed device records reported by the
// appliance cloud and the process-wide cache they live in.
//
// Records are decoded and validated once, when they enter the cache, so
// consumers never walk untyped nested maps. The cache has a single writer
// (the cloud poller) and many readers (entity projections, the REST API).
// Every read returns a copy.
package appliance
