package engine

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/totegamma/escrow-ledger/internal/domain"
)

var deadline = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

func at(offset int) time.Time {
	return deadline.Add(time.Duration(offset) * time.Second)
}

// book applies transitions the way a substrate would, so tests can check
// conservation across sequences of operations.
type book struct {
	t            *testing.T
	campaign     domain.Campaign
	contributors map[string]domain.Contributor
	balances     map[string]uint64
}

func newBook(t *testing.T, goal uint64, funds map[string]uint64) *book {
	t.Helper()
	campaign, err := Open("slot-creator", "creator", goal, deadline, at(-100))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	balances := map[string]uint64{}
	for k, v := range funds {
		balances[k] = v
	}
	return &book{
		t:            t,
		campaign:     campaign,
		contributors: map[string]domain.Contributor{},
		balances:     balances,
	}
}

func (b *book) lookup(owner string) domain.PositionLookup {
	slot := "pos-" + owner
	if rec, ok := b.contributors[slot]; ok {
		return domain.Existing(rec)
	}
	return domain.Created(slot, b.campaign.Slot, owner)
}

func (b *book) commit(tr Transition) {
	b.t.Helper()
	if b.balances[tr.Transfer.From] < tr.Transfer.Amount {
		b.t.Fatalf("transfer of %d from %s exceeds balance", tr.Transfer.Amount, tr.Transfer.From)
	}
	b.balances[tr.Transfer.From] -= tr.Transfer.Amount
	b.balances[tr.Transfer.To] += tr.Transfer.Amount
	b.campaign = tr.Campaign
	if tr.Contributor != nil {
		b.contributors[tr.Contributor.Slot] = *tr.Contributor
	}
	b.check()
}

func (b *book) check() {
	b.t.Helper()
	list := make([]domain.Contributor, 0, len(b.contributors))
	for _, c := range b.contributors {
		list = append(list, c)
	}
	if err := CheckInvariants(b.campaign, list, b.balances[b.campaign.Slot]); err != nil {
		b.t.Fatalf("invariant violated: %v", err)
	}
}

func (b *book) contribute(owner string, amount uint64, now time.Time) error {
	tr, err := Contribute(b.campaign, b.lookup(owner), owner, amount, now)
	if err != nil {
		return err
	}
	if b.balances[owner] < amount {
		return domain.Reject(domain.CodeInvalidAmount, "insufficient funds")
	}
	b.commit(tr)
	return nil
}

func (b *book) exit(owner string, now time.Time) error {
	tr, err := Exit(b.campaign, b.lookup(owner), owner, now)
	if err != nil {
		return err
	}
	b.commit(tr)
	return nil
}

func (b *book) claim(caller string, now time.Time) error {
	tr, err := Claim(b.campaign, caller, now)
	if err != nil {
		return err
	}
	b.commit(tr)
	return nil
}

func TestOpenValidation(t *testing.T) {
	now := at(-10)

	c, err := Open("slot", "creator", 100, deadline, now)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if c.Total != 0 || c.State != domain.CampaignOpen || c.Goal != 100 {
		t.Fatalf("unexpected campaign %+v", c)
	}

	if _, err := Open("slot", "creator", 0, deadline, now); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected InvalidAmount for zero goal, got %v", err)
	}
	if _, err := Open("slot", "creator", 100, now, now); !errors.Is(err, domain.ErrInvalidDeadline) {
		t.Fatalf("expected InvalidDeadline for deadline == now, got %v", err)
	}
	if _, err := Open("", "creator", 100, deadline, now); !errors.Is(err, domain.ErrInvalidCommand) {
		t.Fatalf("expected InvalidCommand for empty slot, got %v", err)
	}
}

func TestScenarioA(t *testing.T) {
	b := newBook(t, 100, map[string]uint64{"alice": 60, "bob": 50})

	if err := b.contribute("alice", 60, at(-10)); err != nil {
		t.Fatalf("alice contribute: %v", err)
	}
	if b.campaign.Total != 60 {
		t.Fatalf("expected total 60 got %d", b.campaign.Total)
	}
	if err := b.contribute("bob", 50, at(-5)); err != nil {
		t.Fatalf("bob contribute: %v", err)
	}
	if b.campaign.Total != 110 {
		t.Fatalf("expected total 110 got %d", b.campaign.Total)
	}

	if err := b.claim("creator", at(1)); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if b.balances["creator"] != 110 {
		t.Fatalf("expected creator +110 got %d", b.balances["creator"])
	}
	if b.campaign.State != domain.CampaignClaimed {
		t.Fatalf("expected claimed state")
	}
	if b.campaign.Total != 110 {
		t.Fatalf("claim must keep the raised total, got %d", b.campaign.Total)
	}

	if err := b.claim("creator", at(2)); !errors.Is(err, domain.ErrAlreadyWithdrawn) {
		t.Fatalf("expected AlreadyWithdrawn on second claim, got %v", err)
	}
	if err := b.exit("alice", at(2)); !errors.Is(err, domain.ErrExitNotAllowed) {
		t.Fatalf("expected exit to be blocked after claim, got %v", err)
	}
}

func TestScenarioB(t *testing.T) {
	b := newBook(t, 100, map[string]uint64{"alice": 40})

	if err := b.contribute("alice", 40, at(-10)); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if err := b.claim("creator", at(1)); !errors.Is(err, domain.ErrGoalNotReached) {
		t.Fatalf("expected GoalNotReached, got %v", err)
	}
	if !Refundable(b.campaign, at(1)) {
		t.Fatalf("expected failed campaign to be refundable")
	}
	if err := b.exit("alice", at(2)); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if b.balances["alice"] != 40 || b.campaign.Total != 0 {
		t.Fatalf("expected refund of 40, balance=%d total=%d", b.balances["alice"], b.campaign.Total)
	}
	if Refundable(b.campaign, at(3)) {
		t.Fatalf("drained campaign should not be refundable")
	}
}

func TestScenarioC(t *testing.T) {
	b := newBook(t, 100, map[string]uint64{"alice": 10})

	if err := b.contribute("alice", 10, at(-5)); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if err := b.exit("alice", at(-3)); err != nil {
		t.Fatalf("early exit: %v", err)
	}
	rec := b.contributors["pos-alice"]
	if rec.State != domain.PositionWithdrawn || rec.Amount != 0 {
		t.Fatalf("unexpected record after exit %+v", rec)
	}
}

func TestScenarioD(t *testing.T) {
	b := newBook(t, 100, map[string]uint64{"alice": 10})
	if err := b.contribute("alice", 0, at(-5)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected InvalidAmount, got %v", err)
	}
}

func TestScenarioE(t *testing.T) {
	b := newBook(t, 100, map[string]uint64{"creator": 10})
	if err := b.contribute("creator", 10, at(-5)); !errors.Is(err, domain.ErrSelfContribution) {
		t.Fatalf("expected SelfContribution, got %v", err)
	}
}

func TestContributePreconditionOrder(t *testing.T) {
	b := newBook(t, 100, nil)

	// zero amount after the deadline by the creator: amount check wins
	if err := b.contribute("creator", 0, at(5)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected InvalidAmount first, got %v", err)
	}
	// creator after the deadline: deadline check wins
	if err := b.contribute("creator", 5, at(5)); !errors.Is(err, domain.ErrCampaignEnded) {
		t.Fatalf("expected CampaignEnded second, got %v", err)
	}
}

func TestDeadlineGating(t *testing.T) {
	b := newBook(t, 100, map[string]uint64{"alice": 100})

	for _, offset := range []int{-50, -2, -1} {
		if err := b.contribute("alice", 1, at(offset)); err != nil {
			t.Fatalf("contribute at %d: %v", offset, err)
		}
	}
	for _, offset := range []int{0, 1, 100} {
		if err := b.contribute("alice", 1, at(offset)); !errors.Is(err, domain.ErrCampaignEnded) {
			t.Fatalf("expected CampaignEnded at %d, got %v", offset, err)
		}
	}
}

func TestExitGating(t *testing.T) {
	cases := []struct {
		name    string
		total   uint64
		offset  int
		allowed bool
	}{
		{"before deadline under goal", 50, -1, true},
		{"before deadline goal met", 150, -1, true},
		{"at deadline under goal", 50, 0, true},
		{"after deadline under goal", 50, 10, true},
		{"at deadline goal met", 100, 0, false},
		{"after deadline goal met", 150, 10, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			campaign := domain.Campaign{Slot: "c", Creator: "creator", Deadline: deadline, Goal: 100, Total: tc.total}
			pos := domain.Existing(domain.Contributor{Slot: "p", Campaign: "c", Owner: "alice", Amount: tc.total, State: domain.PositionActive})

			tr, err := Exit(campaign, pos, "alice", at(tc.offset))
			if tc.allowed {
				if err != nil {
					t.Fatalf("expected exit to succeed, got %v", err)
				}
				if tr.Campaign.Total != 0 || tr.Transfer.Amount != tc.total {
					t.Fatalf("unexpected transition %+v", tr)
				}
			} else if !errors.Is(err, domain.ErrExitNotAllowed) {
				t.Fatalf("expected ExitNotAllowed, got %v", err)
			}
			if CanExit(campaign, at(tc.offset)) != tc.allowed {
				t.Fatalf("CanExit disagrees with Exit")
			}
		})
	}
}

func TestNoDoubleExit(t *testing.T) {
	b := newBook(t, 100, map[string]uint64{"alice": 30})
	if err := b.contribute("alice", 30, at(-10)); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if err := b.exit("alice", at(-5)); err != nil {
		t.Fatalf("first exit: %v", err)
	}
	before := b.balances["alice"]
	if err := b.exit("alice", at(-4)); !errors.Is(err, domain.ErrAlreadyWithdrawn) {
		t.Fatalf("expected AlreadyWithdrawn, got %v", err)
	}
	if b.balances["alice"] != before {
		t.Fatalf("second exit moved funds")
	}
}

func TestExitRequiresRecordAndOwner(t *testing.T) {
	b := newBook(t, 100, map[string]uint64{"alice": 30})
	if err := b.exit("alice", at(-5)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound without a record, got %v", err)
	}

	if err := b.contribute("alice", 30, at(-10)); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	_, err := Exit(b.campaign, b.lookup("alice"), "mallory", at(-5))
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized for foreign record, got %v", err)
	}
}

func TestRecontributeAfterExit(t *testing.T) {
	b := newBook(t, 100, map[string]uint64{"alice": 100})
	if err := b.contribute("alice", 30, at(-10)); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if err := b.contribute("alice", 20, at(-9)); err != nil {
		t.Fatalf("accumulate: %v", err)
	}
	if got := b.contributors["pos-alice"].Amount; got != 50 {
		t.Fatalf("expected accumulated 50 got %d", got)
	}
	if err := b.exit("alice", at(-8)); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if err := b.contribute("alice", 7, at(-7)); err != nil {
		t.Fatalf("re-contribute: %v", err)
	}
	rec := b.contributors["pos-alice"]
	if rec.State != domain.PositionActive || rec.Amount != 7 {
		t.Fatalf("expected fresh active record, got %+v", rec)
	}
}

func TestClaimPreconditions(t *testing.T) {
	c := domain.Campaign{Slot: "c", Creator: "creator", Deadline: deadline, Goal: 100, Total: 100}

	if _, err := Claim(c, "alice", at(1)); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if _, err := Claim(c, "creator", at(-1)); !errors.Is(err, domain.ErrCampaignNotEnded) {
		t.Fatalf("expected CampaignNotEnded, got %v", err)
	}

	under := c
	under.Total = 99
	// goal check precedes the deadline check
	if _, err := Claim(under, "creator", at(-1)); !errors.Is(err, domain.ErrGoalNotReached) {
		t.Fatalf("expected GoalNotReached, got %v", err)
	}

	claimed := c
	claimed.State = domain.CampaignClaimed
	if _, err := Claim(claimed, "creator", at(1)); !errors.Is(err, domain.ErrAlreadyWithdrawn) {
		t.Fatalf("expected AlreadyWithdrawn, got %v", err)
	}
}

func TestContributeOverflow(t *testing.T) {
	c := domain.Campaign{Slot: "c", Creator: "creator", Deadline: deadline, Goal: 100, Total: ^uint64(0) - 1}
	pos := domain.Created("p", "c", "alice")
	if _, err := Contribute(c, pos, "alice", 2, at(-1)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected InvalidAmount on overflow, got %v", err)
	}
}

func TestConservationRandomized(t *testing.T) {
	owners := []string{"alice", "bob", "carol", "dave"}
	funds := map[string]uint64{}
	for _, o := range owners {
		funds[o] = 1_000
	}

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		b := newBook(t, uint64(rng.Intn(400)+1), funds)
		now := at(-60)
		for step := 0; step < 40; step++ {
			owner := owners[rng.Intn(len(owners))]
			switch rng.Intn(3) {
			case 0:
				_ = b.contribute(owner, uint64(rng.Intn(50)), now)
			case 1:
				_ = b.exit(owner, now)
			case 2:
				_ = b.claim("creator", now)
			}
			now = now.Add(time.Duration(rng.Intn(4)) * time.Second)
		}

		var sum uint64
		for _, o := range owners {
			sum += b.balances[o]
		}
		sum += b.balances[b.campaign.Slot] + b.balances["creator"]
		if sum != uint64(len(owners))*1_000 {
			t.Fatalf("round %d: value not conserved, got %d", round, sum)
		}
	}
}
