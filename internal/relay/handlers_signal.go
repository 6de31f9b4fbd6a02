package relay

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
)

// forwardSignal relays an opaque WebRTC blob to target_user, tagged with the
// sender id. Offline or malformed targets are dropped without telling the sender.
func forwardSignal(field string) HandlerFunc {
	return func(c *Cargo) error {
		rawTarget, _ := c.StringField("target_user")
		target, err := uuid.Parse(rawTarget)
		if err != nil || !c.StateManager.IsOnline(target) {
			c.Logger.Debug("Dropping signal for offline target", slog.String("target", rawTarget))
			return nil
		}

		blob := json.RawMessage("null")
		if v := c.Field(field); v.Exists() {
			blob = json.RawMessage(v.Raw)
		}
		c.SendTo(target, c.Event, map[string]any{
			field:       blob,
			"from_user": c.ConnID.String(),
		})

		c.Logger.Debug("Forwarding signal", slog.String("target", rawTarget))
		return nil
	}
}
