package audit

import (
	"github.com/nerrad567/gray-logic-appliances/internal/entity"
)

// CommandEntry describes cmd sent to e from source. err is the result of
// entity.Execute; nil means the action was queued.
func CommandEntry(source string, e entity.Entity, cmd entity.Command, err error) *Entry {
	entry := &Entry{
		Platform: string(e.Platform()),
		UniqueID: e.UniqueID(),
		DeviceID: e.DeviceID(),
		Command:  cmd.Command,
		Speed:    cmd.Speed,
		Source:   source,
		Outcome:  OutcomeAccepted,
	}
	if err != nil {
		entry.Outcome = OutcomeRejected
		entry.Error = err.Error()
	}
	return entry
}
