package engine

import (
	"fmt"
	"time"

	"github.com/totegamma/escrow-ledger/internal/domain"
)

// Transition is the outcome of an accepted operation. The substrate must
// persist Campaign, Contributor (when set) and Transfer in one atomic step.
type Transition struct {
	Campaign    domain.Campaign
	Contributor *domain.Contributor
	Transfer    domain.Transfer
	Event       string
}

// Open builds a new campaign record for the creator's slot. Occupancy of the
// slot is checked by the substrate, which reports AlreadyExists.
func Open(slot, creator string, goal uint64, deadline, now time.Time) (domain.Campaign, error) {
	if slot == "" || creator == "" {
		return domain.Campaign{}, domain.Reject(domain.CodeInvalidCommand, "campaign slot and creator are required")
	}
	if goal == 0 {
		return domain.Campaign{}, domain.Reject(domain.CodeInvalidAmount, "goal must be greater than zero")
	}
	if !deadline.After(now) {
		return domain.Campaign{}, domain.Reject(domain.CodeInvalidDeadline, "deadline %s is not after %s", deadline.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	return domain.Campaign{
		Slot:      slot,
		Creator:   creator,
		Deadline:  deadline,
		Goal:      goal,
		Total:     0,
		State:     domain.CampaignOpen,
		CreatedAt: now,
	}, nil
}

// Contribute moves amount from the caller into the campaign and accumulates it
// on the caller's contributor record, creating or reviving it as needed.
func Contribute(campaign domain.Campaign, position domain.PositionLookup, caller string, amount uint64, now time.Time) (Transition, error) {
	if amount == 0 {
		return Transition{}, domain.Reject(domain.CodeInvalidAmount, "amount must be greater than zero")
	}
	if campaign.Ended(now) {
		return Transition{}, domain.Reject(domain.CodeCampaignEnded, "campaign ended at %s", campaign.Deadline.Format(time.RFC3339))
	}
	if caller == campaign.Creator {
		return Transition{}, domain.Reject(domain.CodeSelfContribution, "creator cannot contribute to its own campaign")
	}

	record := position.Record
	if err := checkPosition(campaign, record, caller); err != nil {
		return Transition{}, err
	}

	total, ok := add(campaign.Total, amount)
	if !ok {
		return Transition{}, domain.Reject(domain.CodeInvalidAmount, "campaign total overflows")
	}

	switch record.State {
	case domain.PositionWithdrawn:
		record.Amount = amount
		record.State = domain.PositionActive
	case domain.PositionActive:
		sum, ok := add(record.Amount, amount)
		if !ok {
			return Transition{}, domain.Reject(domain.CodeInvalidAmount, "contributor amount overflows")
		}
		record.Amount = sum
	default:
		return Transition{}, fmt.Errorf("contributor %s in unknown state %d", record.Slot, record.State)
	}

	campaign.Total = total

	return Transition{
		Campaign:    campaign,
		Contributor: &record,
		Transfer: domain.Transfer{
			From:   caller,
			To:     campaign.Slot,
			Amount: amount,
		},
		Event: domain.EventContributionAdded,
	}, nil
}

// Exit returns the caller's outstanding amount. It covers both early
// withdrawal and the refund after a failed campaign; it is blocked only once
// the campaign has ended with its goal reached.
func Exit(campaign domain.Campaign, position domain.PositionLookup, caller string, now time.Time) (Transition, error) {
	if position.Kind == domain.LookupCreated {
		return Transition{}, domain.NotFoundError{Resource: "contributor"}
	}

	record := position.Record
	if err := checkPosition(campaign, record, caller); err != nil {
		return Transition{}, err
	}

	switch record.State {
	case domain.PositionWithdrawn:
		return Transition{}, domain.Reject(domain.CodeAlreadyWithdrawn, "contributor already exited")
	case domain.PositionActive:
	default:
		return Transition{}, fmt.Errorf("contributor %s in unknown state %d", record.Slot, record.State)
	}

	if !CanExit(campaign, now) {
		return Transition{}, domain.Reject(domain.CodeExitNotAllowed, "campaign ended with its goal reached")
	}

	if campaign.Total < record.Amount {
		return Transition{}, fmt.Errorf("campaign %s total %d is below contributor amount %d", campaign.Slot, campaign.Total, record.Amount)
	}

	amount := record.Amount
	campaign.Total -= amount
	record.Amount = 0
	record.State = domain.PositionWithdrawn

	return Transition{
		Campaign:    campaign,
		Contributor: &record,
		Transfer: domain.Transfer{
			From:   campaign.Slot,
			To:     record.Owner,
			Amount: amount,
		},
		Event: domain.EventContributorExited,
	}, nil
}

// Claim pays the whole raised total to the creator of a succeeded campaign.
// Total is kept as the historical raised amount.
func Claim(campaign domain.Campaign, caller string, now time.Time) (Transition, error) {
	if caller != campaign.Creator {
		return Transition{}, domain.Reject(domain.CodeUnauthorized, "only the creator can claim")
	}
	if !campaign.GoalReached() {
		return Transition{}, domain.Reject(domain.CodeGoalNotReached, "raised %d of %d", campaign.Total, campaign.Goal)
	}
	if !campaign.Ended(now) {
		return Transition{}, domain.Reject(domain.CodeCampaignNotEnded, "campaign ends at %s", campaign.Deadline.Format(time.RFC3339))
	}

	switch campaign.State {
	case domain.CampaignClaimed:
		return Transition{}, domain.Reject(domain.CodeAlreadyWithdrawn, "campaign already claimed")
	case domain.CampaignOpen:
	default:
		return Transition{}, fmt.Errorf("campaign %s in unknown state %d", campaign.Slot, campaign.State)
	}

	campaign.State = domain.CampaignClaimed

	return Transition{
		Campaign: campaign,
		Transfer: domain.Transfer{
			From:   campaign.Slot,
			To:     campaign.Creator,
			Amount: campaign.Total,
		},
		Event: domain.EventCampaignClaimed,
	}, nil
}

// CanExit is the exit guard: NOT (ended AND goal reached).
func CanExit(campaign domain.Campaign, now time.Time) bool {
	return !(campaign.Ended(now) && campaign.GoalReached())
}

// Refundable reports whether the campaign failed and still holds funds.
func Refundable(campaign domain.Campaign, now time.Time) bool {
	return campaign.Phase(now) == domain.PhaseFailed && campaign.Total > 0
}

func checkPosition(campaign domain.Campaign, record domain.Contributor, caller string) error {
	if record.Owner != caller {
		return domain.Reject(domain.CodeUnauthorized, "contributor record belongs to %s", record.Owner)
	}
	if record.Campaign != campaign.Slot {
		return domain.Reject(domain.CodeInvalidCommand, "contributor record belongs to campaign %s", record.Campaign)
	}
	return nil
}

func add(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}
