package entity

import (
	"context"
	"fmt"
)

// Command names accepted from the host and the REST API.
const (
	CommandTurnOn   = "turn_on"
	CommandTurnOff  = "turn_off"
	CommandSetSpeed = "set_speed"
)

// Command is a user intent addressed to one entity.
type Command struct {
	Command string `json:"command"`
	Speed   *int   `json:"speed,omitempty"`
}

// Execute runs cmd against e. Binary sensors accept nothing; lights have
// no speed.
func Execute(ctx context.Context, e Entity, cmd Command) error {
	c, ok := e.(Controllable)
	if !ok {
		return fmt.Errorf("%w: %s is read-only", ErrUnsupported, e.Key())
	}

	switch cmd.Command {
	case CommandTurnOn:
		var opts []TurnOnOption
		if cmd.Speed != nil {
			opts = append(opts, WithSpeed(*cmd.Speed))
		}
		return c.TurnOn(ctx, opts...)
	case CommandTurnOff:
		return c.TurnOff(ctx)
	case CommandSetSpeed:
		s, ok := e.(SpeedController)
		if !ok {
			return fmt.Errorf("%w: %s has no speed", ErrUnsupported, e.Key())
		}
		if cmd.Speed == nil {
			return fmt.Errorf("%w: speed is required", ErrInvalidSpeed)
		}
		return s.SetSpeed(ctx, *cmd.Speed)
	default:
		return fmt.Errorf("%w: command %q", ErrUnsupported, cmd.Command)
	}
}
