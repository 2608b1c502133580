package domain

import "fmt"

// PositionState is the persisted state of a contributor record.
type PositionState int

const (
	PositionActive PositionState = iota
	PositionWithdrawn
)

func (s PositionState) String() string {
	switch s {
	case PositionActive:
		return "active"
	case PositionWithdrawn:
		return "withdrawn"
	default:
		return "unknown"
	}
}

func ParsePositionState(s string) (PositionState, error) {
	switch s {
	case "active":
		return PositionActive, nil
	case "withdrawn":
		return PositionWithdrawn, nil
	default:
		return PositionActive, fmt.Errorf("unknown position state: %q", s)
	}
}

// Contributor is one contributor's outstanding balance within one campaign.
type Contributor struct {
	Slot     string
	Campaign string
	Owner    string
	Amount   uint64
	State    PositionState
}

type LookupKind int

const (
	LookupExisting LookupKind = iota
	LookupCreated
)

// PositionLookup is the result of a get-or-create on a contributor slot.
type PositionLookup struct {
	Kind   LookupKind
	Record Contributor
}

func Existing(record Contributor) PositionLookup {
	return PositionLookup{Kind: LookupExisting, Record: record}
}

// Created returns a default, not yet persisted, contributor record.
func Created(slot, campaign, owner string) PositionLookup {
	return PositionLookup{
		Kind: LookupCreated,
		Record: Contributor{
			Slot:     slot,
			Campaign: campaign,
			Owner:    owner,
			State:    PositionActive,
		},
	}
}
