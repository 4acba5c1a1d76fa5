package appliance

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ParseDevices decodes the cloud's device list, a JSON object keyed by
// fabNumber.
//
// A record that fails to parse does not fail the list; it is reported in
// skipped, keyed by its object key. err is only set when the document
// itself is not a JSON object. Records are returned sorted by device id.
func ParseDevices(data []byte) (records []Record, skipped map[string]error, err error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: device list: %w", ErrMalformedRecord, err)
	}

	records = make([]Record, 0, len(raw))
	for key, body := range raw {
		rec, err := Parse(body)
		if err != nil {
			if skipped == nil {
				skipped = make(map[string]error)
			}
			skipped[key] = err
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Ident.DeviceID < records[j].Ident.DeviceID
	})
	return records, skipped, nil
}
