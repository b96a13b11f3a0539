package risk

import (
	"sort"

	"wyckoff/internal/campaign"
)

// ExitPriority orders campaigns for forced contraction when heat or cascade
// limits demand it: most advanced phase first (nearest completion), most
// recently updated first within a phase.
func ExitPriority(active []*campaign.Campaign) []*campaign.Campaign {
	out := append([]*campaign.Campaign(nil), active...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Phase.Rank(), out[j].Phase.Rank()
		if ri != rj {
			return ri > rj
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}
