// Package notify polls the gateway for async messages and tracks the
// unread count, applying read-state mutations optimistically.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/recruitport/recruitport-go/internal/gateway"
	"github.com/recruitport/recruitport-go/internal/model"
)

// DefaultPollInterval matches the portal's historical 30s cadence.
const DefaultPollInterval = 30 * time.Second

// Center is the client-side notification store. Server order is
// preserved; unreadCount is recomputed on every fetch and adjusted
// optimistically on MarkRead.
type Center struct {
	gw  *gateway.Client
	log *slog.Logger

	mu     sync.Mutex
	items  []model.Notification
	unread int
}

// New creates an empty Center.
func New(gw *gateway.Client) *Center {
	return &Center{gw: gw, log: slog.Default()}
}

// FetchAll replaces the notification sequence with the server's and
// recomputes the unread count. Safe to call repeatedly.
func (c *Center) FetchAll(ctx context.Context) error {
	var items []model.Notification
	if err := c.gw.GetJSON(ctx, "/notifications", nil, &items); err != nil {
		return err
	}

	unread := 0
	for _, n := range items {
		if !n.ReadStatus {
			unread++
		}
	}

	c.mu.Lock()
	c.items = items
	c.unread = unread
	c.mu.Unlock()
	return nil
}

// MarkRead flips the matching entry to read locally before the remote
// call resolves, decrementing the unread count by at most one, floored
// at zero. A remote failure deliberately leaves the optimistic state in
// place: responsiveness wins, and the next FetchAll reconciles to
// server truth.
func (c *Center) MarkRead(ctx context.Context, id string) error {
	c.mu.Lock()
	for i := range c.items {
		if c.items[i].ID != id {
			continue
		}
		if !c.items[i].ReadStatus {
			c.items[i].ReadStatus = true
			if c.unread > 0 {
				c.unread--
			}
		}
		break
	}
	c.mu.Unlock()

	if err := c.gw.PatchJSON(ctx, "/notifications/"+id+"/read", nil, nil); err != nil {
		c.log.Warn("mark-read not confirmed by gateway, keeping optimistic state", "id", id, "error", err)
		return err
	}
	return nil
}

// Broadcast asks the gateway to deliver a system notification to every
// user. Admin only; the gateway enforces the role.
func (c *Center) Broadcast(ctx context.Context, message string) error {
	return c.gw.PostJSON(ctx, "/notifications/admin/broadcast", map[string]string{"message": message}, nil)
}

// Notifications returns a copy of the current sequence in server order.
func (c *Center) Notifications() []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Notification, len(c.items))
	copy(out, c.items)
	return out
}

// UnreadCount returns the current unread tally. Never negative.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Run fetches immediately, then keeps polling on the given interval
// until ctx is cancelled. Cancelling ctx is the deterministic teardown:
// callers cancel on logout so no timer outlives the session.
func (c *Center) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if err := c.FetchAll(ctx); err != nil {
		c.log.Warn("notification fetch failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.FetchAll(ctx); err != nil {
				c.log.Warn("notification fetch failed", "error", err)
			}
		}
	}
}
