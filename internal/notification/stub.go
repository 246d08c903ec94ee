package notification

import (
	"context"
	"log/slog"
)

// LoggedStubAdapter delivers nothing; it logs the attempt and always
// succeeds. The spec names email/push as channels without specifying a
// provider or transport for either, so there is no concrete wire format to
// implement against. This still exercises the dispatcher's per-channel
// routing, status transitions and SendMultiChannel fan-out end to end.
type LoggedStubAdapter struct {
	Channel Channel
}

func (a LoggedStubAdapter) Send(ctx context.Context, n *Notification) error {
	slog.InfoContext(ctx, "notification dispatched via stub adapter",
		"channel", string(a.Channel), "to", n.To, "user_id", n.UserID)
	return nil
}
