package engine

import (
	"fmt"

	"github.com/totegamma/escrow-ledger/internal/domain"
)

// CheckInvariants verifies a campaign against all of its contributor records
// and the balance actually held at its slot. A violation is a ledger defect.
func CheckInvariants(campaign domain.Campaign, contributors []domain.Contributor, held uint64) error {
	var outstanding uint64
	for _, c := range contributors {
		if c.Campaign != campaign.Slot {
			return fmt.Errorf("contributor %s belongs to campaign %s, not %s", c.Slot, c.Campaign, campaign.Slot)
		}

		switch c.State {
		case domain.PositionWithdrawn:
			if c.Amount != 0 {
				return fmt.Errorf("withdrawn contributor %s still holds %d", c.Slot, c.Amount)
			}
		case domain.PositionActive:
			sum, ok := add(outstanding, c.Amount)
			if !ok {
				return fmt.Errorf("outstanding amounts of campaign %s overflow", campaign.Slot)
			}
			outstanding = sum
		default:
			return fmt.Errorf("contributor %s in unknown state %d", c.Slot, c.State)
		}
	}

	if outstanding != campaign.Total {
		return fmt.Errorf("campaign %s total %d does not match outstanding contributions %d", campaign.Slot, campaign.Total, outstanding)
	}

	switch campaign.State {
	case domain.CampaignOpen:
		if held != campaign.Total {
			return fmt.Errorf("campaign %s holds %d but total is %d", campaign.Slot, held, campaign.Total)
		}
	case domain.CampaignClaimed:
		if held != 0 {
			return fmt.Errorf("claimed campaign %s still holds %d", campaign.Slot, held)
		}
		if !campaign.GoalReached() {
			return fmt.Errorf("claimed campaign %s is below its goal", campaign.Slot)
		}
	default:
		return fmt.Errorf("campaign %s in unknown state %d", campaign.Slot, campaign.State)
	}

	return nil
}
