package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-appliances/internal/appliance"
)

func TestExecute(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		platform Platform
		cmd      Command
		wantErr  error
		wantBody map[string]any
	}{
		{"fan on", PlatformFan, Command{Command: CommandTurnOn}, nil, map[string]any{"powerOn": true}},
		{"fan on at speed", PlatformFan, Command{Command: CommandTurnOn, Speed: intPtr(4)}, nil, map[string]any{"powerOn": true, "ventilationStep": 4}},
		{"fan off", PlatformFan, Command{Command: CommandTurnOff}, nil, map[string]any{"powerOff": true}},
		{"fan speed", PlatformFan, Command{Command: CommandSetSpeed, Speed: intPtr(1)}, nil, map[string]any{"ventilationStep": 1}},
		{"fan speed missing", PlatformFan, Command{Command: CommandSetSpeed}, ErrInvalidSpeed, nil},
		{"fan speed out of range", PlatformFan, Command{Command: CommandSetSpeed, Speed: intPtr(9)}, ErrInvalidSpeed, nil},
		{"light on", PlatformLight, Command{Command: CommandTurnOn}, nil, map[string]any{"light": 1}},
		{"light off", PlatformLight, Command{Command: CommandTurnOff}, nil, map[string]any{"light": 2}},
		{"light speed", PlatformLight, Command{Command: CommandSetSpeed, Speed: intPtr(1)}, ErrUnsupported, nil},
		{"sensor on", PlatformBinarySensor, Command{Command: CommandTurnOn}, ErrUnsupported, nil},
		{"unknown command", PlatformLight, Command{Command: "blink"}, ErrUnsupported, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, d := newDeps(appliance.NewCache())
			rec := hood("1", "")
			rec.State.SignalDoor = boolPtr(false)

			var e Entity
			var err error
			switch tt.platform {
			case PlatformFan:
				e, err = asEntity(NewFan(rec, deps))
			case PlatformLight:
				e, err = asEntity(NewLight(rec, deps))
			case PlatformBinarySensor:
				e, err = asEntity(NewBinarySensor(rec, appliance.AspectSignalDoor, deps))
			}
			require.NoError(t, err)

			err = Execute(ctx, e, tt.cmd)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, d.Calls())
				return
			}
			require.NoError(t, err)
			calls := d.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.wantBody, calls[0].Req.Body)
		})
	}
}
