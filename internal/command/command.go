// Package command implements the per-robot command/status cell: the
// synchronization point between an operator's scan start/stop intent and a
// physically disconnected robot that polls for it.
package command

import (
	"context"
	"fmt"
)

// Command is a desired operating mode for a robot.
type Command string

const (
	// Start asks the robot to begin a scanning pass on its next poll.
	Start Command = "start"
	// Stop asks the robot to halt scanning. Robots that were never bound
	// read as stopped, never as started.
	Stop Command = "stop"
)

// Well-known reason codes attached to status changes.
const (
	ReasonManual     = "manual"
	ReasonEndOfRoute = "end_of_route"
	ReasonObstacle   = "obstacle"
)

// Cell is the last-write-wins value held per robot: the most recent
// desired command and the reason it was set.
type Cell struct {
	Command Command `json:"command"`
	Reason  string  `json:"reason"`
}

// DefaultCell is what an unbound or cleared robot reads: stopped, manual.
func DefaultCell() Cell {
	return Cell{Command: Stop, Reason: ReasonManual}
}

// Valid reports whether cmd is a known command token.
func (c Command) Valid() bool {
	return c == Start || c == Stop
}

// Store holds the latest desired command per robot. Writes overwrite
// unconditionally: any command may follow any other, concurrent writers
// race and the last write wins, and intents are never queued. A failed
// write surfaces as an error, never a silent drop.
type Store interface {
	// SetDesired overwrites the robot's cell.
	SetDesired(ctx context.Context, robotID string, cmd Command, reason string) error

	// GetDesired returns the robot's current cell. Robots with no cell
	// read as DefaultCell.
	GetDesired(ctx context.Context, robotID string) (Cell, error)

	// Clear resets the cell after a scan cycle completes, so a stale
	// start command cannot re-trigger the robot indefinitely.
	Clear(ctx context.Context, robotID string) error
}

// StopMessage renders the operator-facing text for a robot that reported
// it stopped for the given reason.
func StopMessage(robotID, reason string) string {
	switch reason {
	case ReasonEndOfRoute:
		return fmt.Sprintf("Robot %s finished its route and stopped scanning.", robotID)
	case ReasonObstacle:
		return fmt.Sprintf("Robot %s stopped: an obstacle is blocking its path.", robotID)
	default:
		return fmt.Sprintf("Robot %s stopped scanning.", robotID)
	}
}
