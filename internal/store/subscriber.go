// Package store wires persistence to the event bus: campaign snapshots on
// every lifecycle event, rejected patterns into the audit log.
package store

import (
	"context"
	"strings"
	"time"

	"wyckoff/internal/eventbus"
	"wyckoff/internal/logger"
	"wyckoff/internal/store/audit"
	"wyckoff/internal/store/sqlite"
)

const writeTimeout = 5 * time.Second

// Subscriber reacts to engine events independently of the ingestion path.
type Subscriber struct {
	snapshots *sqlite.Store
	rejects   *audit.Log
}

func NewSubscriber(snapshots *sqlite.Store, rejects *audit.Log) *Subscriber {
	return &Subscriber{snapshots: snapshots, rejects: rejects}
}

// Attach registers the subscriber for all engine events.
func (s *Subscriber) Attach(bus *eventbus.Bus) (eventbus.Subscription, error) {
	return bus.Subscribe(eventbus.EventAny, s.handle)
}

func (s *Subscriber) handle(evt eventbus.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	switch evt.Type {
	case eventbus.EventPatternRejected:
		if s.rejects == nil {
			return
		}
		code, reason := splitReason(evt.Reason)
		if err := s.rejects.Append(ctx, evt.Symbol, evt.CampaignID, code, reason, evt.Pattern); err != nil {
			logger.Errorf("store: rejection append failed: %v", err)
		}
	case eventbus.EventHeatAlert, eventbus.EventCascadeAlert:
		// Alerts are notification concerns, nothing to persist here.
	default:
		if s.snapshots == nil || evt.Campaign == nil {
			return
		}
		if err := s.snapshots.SaveCampaign(ctx, evt.Campaign); err != nil {
			logger.Errorf("store: campaign snapshot failed (id=%s): %v", evt.CampaignID, err)
		}
	}
}

// splitReason separates the engine's "code: detail" rejection format.
func splitReason(r string) (code, reason string) {
	if i := strings.Index(r, ": "); i > 0 {
		return r[:i], r[i+2:]
	}
	return "", r
}
