package risk

import (
	"sort"

	"wyckoff/internal/campaign"
)

// CascadeSignal names a correlation group whose active campaigns are failing
// together. It is a portfolio-level defensive trigger, not a rejection of any
// single campaign.
type CascadeSignal struct {
	Group       string   `json:"group"`
	Failing     int      `json:"failing"`
	CampaignIDs []string `json:"campaign_ids"`
}

// Cascades scans the active set and returns a signal for every correlation
// group with at least CascadeThreshold concurrently failing campaigns.
func (g *Gate) Cascades(active []*campaign.Campaign) []CascadeSignal {
	byGroup := make(map[string][]string)
	for _, c := range active {
		if c.CorrelationGroup == "" || !c.Failing {
			continue
		}
		byGroup[c.CorrelationGroup] = append(byGroup[c.CorrelationGroup], c.ID)
	}

	var signals []CascadeSignal
	for group, ids := range byGroup {
		if len(ids) >= g.cfg.CascadeThreshold {
			sort.Strings(ids)
			signals = append(signals, CascadeSignal{Group: group, Failing: len(ids), CampaignIDs: ids})
		}
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i].Group < signals[j].Group })
	return signals
}

func failingInGroup(active []*campaign.Campaign, group string) int {
	n := 0
	for _, c := range active {
		if c.CorrelationGroup == group && c.Failing {
			n++
		}
	}
	return n
}
