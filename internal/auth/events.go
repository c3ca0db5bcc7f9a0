package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/metrics"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

const (
	EventLoggedIn       = "user.logged_in"
	EventLoggedOut      = "user.logged_out"
	EventRegistered     = "user.registered"
	EventSessionExpired = "session.expired"

	EventPasswordResetRequested = "user.password_reset_requested"
)

type Event struct {
	Type     string      `json:"type"`
	UserID   int64       `json:"user_id,omitempty"`
	Username string      `json:"username,omitempty"`
	Role     models.Role `json:"role,omitempty"`
	Email    string      `json:"email,omitempty"`
	ClientID string      `json:"client_id,omitempty"`
	At       time.Time   `json:"at"`
}

// publish is best effort: a broker failure never fails the session operation.
func (m *Manager) publish(ctx context.Context, typ string, user *models.UserProfile) {
	metrics.SessionEvents.WithLabelValues(typ).Inc()

	ev := Event{
		Type:     typ,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		ClientID: m.store.ClientID(),
		At:       time.Now().UTC(),
	}
	key := user.Username
	if user.ID != 0 {
		key = strconv.FormatInt(user.ID, 10)
	}
	if err := m.events.PublishEvent(ctx, key, ev); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", "type", typ, "error", err)
	}
}
