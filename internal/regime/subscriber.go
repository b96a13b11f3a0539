package regime

import (
	"wyckoff/internal/eventbus"
)

// OutcomeSubscriber feeds campaign resolutions back into the analyzer's
// rolling window. Outcomes are attributed to the regime current at
// resolution time, not at campaign start.
type OutcomeSubscriber struct {
	analyzer *Analyzer
}

func NewOutcomeSubscriber(a *Analyzer) *OutcomeSubscriber {
	return &OutcomeSubscriber{analyzer: a}
}

func (s *OutcomeSubscriber) Attach(bus *eventbus.Bus) ([]eventbus.Subscription, error) {
	subs := make([]eventbus.Subscription, 0, 2)
	for _, t := range []eventbus.EventType{eventbus.EventCampaignCompleted, eventbus.EventCampaignFailed} {
		sub, err := bus.Subscribe(t, s.handle)
		if err != nil {
			return subs, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (s *OutcomeSubscriber) handle(evt eventbus.Event) {
	if s.analyzer == nil {
		return
	}
	s.analyzer.RecordOutcome(s.analyzer.CurrentRegime(), evt.Type == eventbus.EventCampaignCompleted)
}
