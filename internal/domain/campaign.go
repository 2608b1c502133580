package domain

import (
	"fmt"
	"time"
)

// CampaignState is the persisted lifecycle state of a campaign.
type CampaignState int

const (
	CampaignOpen CampaignState = iota
	CampaignClaimed
)

func (s CampaignState) String() string {
	switch s {
	case CampaignOpen:
		return "open"
	case CampaignClaimed:
		return "claimed"
	default:
		return "unknown"
	}
}

func ParseCampaignState(s string) (CampaignState, error) {
	switch s {
	case "open":
		return CampaignOpen, nil
	case "claimed":
		return CampaignClaimed, nil
	default:
		return CampaignOpen, fmt.Errorf("unknown campaign state: %q", s)
	}
}

// Phase is derived from a campaign and the current time; it is never stored.
type Phase int

const (
	PhaseOpen Phase = iota
	PhaseSucceeded
	PhaseFailed
	PhaseClaimed
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	case PhaseClaimed:
		return "claimed"
	default:
		return "unknown"
	}
}

// Campaign is the funding goal, deadline and running total owned by one creator.
type Campaign struct {
	Slot      string
	Creator   string
	Deadline  time.Time
	Goal      uint64
	Total     uint64
	State     CampaignState
	CreatedAt time.Time
	// Version counts committed transitions; substrates bump it on every Apply.
	Version   uint64
}

// Ended reports whether now is at or after the deadline.
func (c Campaign) Ended(now time.Time) bool {
	return !now.Before(c.Deadline)
}

func (c Campaign) GoalReached() bool {
	return c.Total >= c.Goal
}

func (c Campaign) Phase(now time.Time) Phase {
	switch {
	case c.State == CampaignClaimed:
		return PhaseClaimed
	case !c.Ended(now):
		return PhaseOpen
	case c.GoalReached():
		return PhaseSucceeded
	default:
		return PhaseFailed
	}
}

// Transfer is a movement of value units between two addressable balances.
type Transfer struct {
	From   string
	To     string
	Amount uint64
}
