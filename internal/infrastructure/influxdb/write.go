package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementEntityState is the measurement every published entity state
// is recorded under.
const MeasurementEntityState = "appliance_state"

// EntityState is one published entity state, flattened for time-series storage.
type EntityState struct {
	UniqueID string
	DeviceID string
	Platform string
	IsOn     bool
	// Speed is recorded only for entities that report one.
	Speed *int
	Time  time.Time
}

// WriteEntityState queues an appliance_state point. Non-blocking; points
// are batched and flushed in the background.
//
//	client.WriteEntityState(influxdb.EntityState{
//	    UniqueID: "000123456789", DeviceID: "000123456789", Platform: "fan",
//	    IsOn: true, Speed: &speed, Time: time.Now(),
//	})
func (c *Client) WriteEntityState(s EntityState) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(entityStatePoint(s))
}

func entityStatePoint(s EntityState) *write.Point {
	fields := map[string]any{
		"is_on": s.IsOn,
	}
	if s.Speed != nil {
		fields["speed"] = int64(*s.Speed)
	}

	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(
		MeasurementEntityState,
		map[string]string{
			"unique_id": s.UniqueID,
			"device_id": s.DeviceID,
			"platform":  s.Platform,
		},
		fields,
		ts,
	)
}
