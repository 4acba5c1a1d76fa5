// Package influxdb records appliance entity state history in InfluxDB v2.
//
// Every state the service publishes to the host is also written as an
// appliance_state point (tags unique_id, device_id, platform; fields is_on
// and, for fans, speed). Writes are non-blocking and batched by the
// official influxdb-client-go write API.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics are optional
//	}
//	defer client.Close()
package influxdb
