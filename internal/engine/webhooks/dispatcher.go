package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"postdeck/internal/engine/notifications"
	"postdeck/internal/pkg/errors"
	"postdeck/internal/platform/models"
	"postdeck/internal/platform/repositories"
)

// Envelope is the event batch platforms push to the webhook endpoint.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      AccountID `json:"id"`
	Time    int64     `json:"time"`
	Changes []Change  `json:"changes"`
}

type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// AccountID accepts both string and numeric ids.
type AccountID string

func (a *AccountID) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = AccountID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = AccountID(n.String())
	return nil
}

var objectPlatforms = map[string]models.Platform{
	"page":      models.PlatformFacebook,
	"instagram": models.PlatformInstagram,
	"tiktok":    models.PlatformTikTok,
}

// PlatformForObject maps an envelope's object type to a platform.
func PlatformForObject(object string) (models.Platform, bool) {
	p, ok := objectPlatforms[strings.ToLower(object)]
	return p, ok
}

// Decode parses an event envelope and rejects unknown object types.
func Decode(body []byte) (*Envelope, models.Platform, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, "", errors.BadRequest("Invalid event payload")
	}
	platform, ok := PlatformForObject(env.Object)
	if !ok {
		return nil, "", errors.BadRequest("Unrecognized object type").WithDetails(map[string]string{"object": env.Object})
	}
	return &env, platform, nil
}

// Dispatcher turns inbound platform events into notifications for every
// organization that has the account linked.
type Dispatcher struct {
	channels      *repositories.ChannelRepository
	notifications *notifications.Service
}

func NewDispatcher(channels *repositories.ChannelRepository, notificationSvc *notifications.Service) *Dispatcher {
	return &Dispatcher{channels: channels, notifications: notificationSvc}
}

// Dispatch returns the number of notifications created.
func (d *Dispatcher) Dispatch(ctx context.Context, platform models.Platform, env *Envelope) (int, error) {
	created := 0
	for _, entry := range env.Entry {
		if entry.ID == "" {
			continue
		}

		linked, err := d.channels.ListActiveByExternalID(ctx, platform, string(entry.ID))
		if err != nil {
			return created, errors.Internal("Failed to look up channels", err)
		}
		if len(linked) == 0 {
			log.Debug().Str("platform", string(platform)).Str("account_id", string(entry.ID)).Msg("webhook entry for unlinked account")
			continue
		}

		changes := entry.Changes
		if len(changes) == 0 {
			changes = []Change{{Field: "update"}}
		}

		for _, ch := range linked {
			for _, change := range changes {
				_, err := d.notifications.Create(ctx, &models.Notification{
					OrganizationID: ch.OrganizationID,
					ChannelID:      ch.ID,
					Type:           change.Field,
					Title:          fmt.Sprintf("%s %s on %s", platformLabel(platform), change.Field, ch.Name),
					Body:           summarize(change.Value),
				})
				if err != nil {
					return created, err
				}
				created++
			}
		}
	}

	log.Info().Str("platform", string(platform)).Int("entries", len(env.Entry)).Int("notifications", created).Msg("webhook dispatched")
	return created, nil
}

func platformLabel(p models.Platform) string {
	switch p {
	case models.PlatformFacebook:
		return "Facebook"
	case models.PlatformInstagram:
		return "Instagram"
	case models.PlatformTikTok:
		return "TikTok"
	}
	return string(p)
}

func summarize(value json.RawMessage) string {
	const max = 500
	s := string(bytes.TrimSpace(value))
	if s == "null" {
		return ""
	}
	if len(s) > max {
		return s[:max]
	}
	return s
}
