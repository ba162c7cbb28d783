package motion

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/open-teleop/motion-controller/pkg/fault"
)

// MoveFor streams cmd at the control rate for the given wall-clock duration and
// then sends one stop command at the same height. A non-positive duration sends
// only the stop. There is no early exit other than a publish failure, after which
// a stop is still attempted.
func (c *Controller) MoveFor(duration time.Duration, cmd VelocityCommand) error {
	if !c.active.TryLock() {
		return fault.Wrap(fault.KindBusy, "move", ErrBusy)
	}
	defer c.active.Unlock()

	logger := c.logger.WithField("move_id", uuid.NewString())
	logger.Infof("Streaming x=%.2f y=%.2f yaw=%.2f for %v", cmd.XVel, cmd.YVel, cmd.YawVel, duration)

	end := c.clock.Now().Add(duration)
	sent := 0
	for c.clock.Now().Before(end) {
		if err := c.publisher.Publish(cmd); err != nil {
			logger.Errorf("Publish failed after %d commands: %v", sent, err)
			return multierr.Append(err, c.publisher.Stop(cmd.Height))
		}
		sent++
		c.clock.Sleep(c.period)
	}

	if err := c.publisher.Stop(cmd.Height); err != nil {
		logger.Errorf("Failed to send stop command: %v", err)
		return err
	}
	logger.Infof("Move finished after %d commands", sent)
	return nil
}
