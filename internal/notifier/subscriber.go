package notifier

import (
	"fmt"
	"strings"
	"time"

	"wyckoff/internal/campaign"
	"wyckoff/internal/eventbus"
	"wyckoff/internal/logger"
	"wyckoff/internal/pkg/circuit"
)

// Subscriber turns engine events into operator notifications. Only the
// events an operator should act on are forwarded; routine pattern adds are
// left to the dashboard. Delivery runs behind a circuit breaker so a dead
// channel does not burn retries on every event.
type Subscriber struct {
	out     TextNotifier
	breaker *circuit.Breaker
}

func NewSubscriber(out TextNotifier) *Subscriber {
	return &Subscriber{
		out:     out,
		breaker: circuit.NewBreaker("notifier", 5, 2*time.Minute),
	}
}

// Attach registers for the alert-worthy event types.
func (s *Subscriber) Attach(bus *eventbus.Bus) ([]eventbus.Subscription, error) {
	types := []eventbus.EventType{
		eventbus.EventCampaignActivated,
		eventbus.EventCampaignCompleted,
		eventbus.EventCampaignFailed,
		eventbus.EventHeatAlert,
		eventbus.EventCascadeAlert,
	}
	subs := make([]eventbus.Subscription, 0, len(types))
	for _, t := range types {
		sub, err := bus.Subscribe(t, s.handle)
		if err != nil {
			return subs, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (s *Subscriber) handle(evt eventbus.Event) {
	text := render(evt)
	if text == "" {
		return
	}
	if !s.breaker.Allow() {
		logger.Debugf("notifier: channel open-circuited, dropping %s", evt.Type)
		return
	}
	if err := s.out.SendText(text); err != nil {
		s.breaker.RecordFailure()
		logger.Warnf("notifier: send failed for %s: %v", evt.Type, err)
		return
	}
	s.breaker.RecordSuccess()
}

func render(evt eventbus.Event) string {
	switch evt.Type {
	case eventbus.EventCampaignActivated:
		return campaignLine("✅ Campaign activated", evt.Campaign)
	case eventbus.EventCampaignCompleted:
		return campaignLine("🏁 Campaign completed", evt.Campaign)
	case eventbus.EventCampaignFailed:
		return campaignLine("❌ Campaign failed", evt.Campaign)
	case eventbus.EventHeatAlert:
		return fmt.Sprintf("🔥 *Heat alert* %s\n%s", evt.Symbol, strings.Join(evt.Warnings, "\n"))
	case eventbus.EventCascadeAlert:
		if evt.Cascade == nil {
			return ""
		}
		return fmt.Sprintf("🚨 *Correlation cascade* group=%s failing=%d\ncampaigns: %s",
			evt.Cascade.Group, evt.Cascade.Failing, strings.Join(evt.Cascade.CampaignIDs, ", "))
	}
	return ""
}

func campaignLine(title string, c *campaign.Campaign) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%s *%s*\nphase=%s heat=%s%% entry=%s patterns=%d",
		title, c.Symbol, c.Phase, c.HeatPct, c.WeightedEntry, len(c.Events))
}
