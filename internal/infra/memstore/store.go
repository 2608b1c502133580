// Package memstore is an in-process substrate for the ledger, used for
// development and tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/totegamma/escrow-ledger/internal/domain"
	"github.com/totegamma/escrow-ledger/internal/engine"
	"github.com/totegamma/escrow-ledger/internal/usecase"
)

// Store holds one mutex per campaign for the whole transition and a short
// store mutex guarding the maps.
type Store struct {
	mu           sync.Mutex
	locks        map[string]*slotLock
	campaigns    map[string]domain.Campaign
	contributors map[string]domain.Contributor
	balances     map[string]uint64
	logs         map[string]usecase.CommandLog
}

func New() *Store {
	return &Store{
		locks:        map[string]*slotLock{},
		campaigns:    map[string]domain.Campaign{},
		contributors: map[string]domain.Contributor{},
		balances:     map[string]uint64{},
		logs:         map[string]usecase.CommandLog{},
	}
}

// slotLock is dropped from the map once no caller holds or waits for it,
// so the map only grows with the number of campaigns in flight.
type slotLock struct {
	mu   sync.Mutex
	refs int
}

func (s *Store) lock(slot string) func() {
	s.mu.Lock()
	l, ok := s.locks[slot]
	if !ok {
		l = &slotLock{}
		s.locks[slot] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, slot)
		}
		s.mu.Unlock()
	}
}

func (s *Store) OpenCampaign(ctx context.Context, campaign domain.Campaign, log usecase.CommandLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.logs[log.ID]; ok {
		return domain.Reject(domain.CodeDuplicateCommand, "command %s already applied", log.ID)
	}
	if _, ok := s.campaigns[campaign.Slot]; ok {
		return domain.Reject(domain.CodeAlreadyExists, "campaign %s already exists", campaign.Slot)
	}

	s.campaigns[campaign.Slot] = campaign
	s.logs[log.ID] = log
	return nil
}

func (s *Store) Apply(ctx context.Context, req usecase.ApplyRequest, fn usecase.ApplyFunc) (engine.Transition, error) {
	unlock := s.lock(req.Campaign)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return engine.Transition{}, err
	}

	s.mu.Lock()
	_, dup := s.logs[req.Log.ID]
	campaign, found := s.campaigns[req.Campaign]
	var lookup domain.PositionLookup
	if req.Contributor != "" {
		if rec, ok := s.contributors[req.Contributor]; ok {
			lookup = domain.Existing(rec)
		} else {
			lookup = domain.Created(req.Contributor, req.Campaign, req.Owner)
		}
	}
	s.mu.Unlock()

	if dup {
		return engine.Transition{}, domain.Reject(domain.CodeDuplicateCommand, "command %s already applied", req.Log.ID)
	}
	if !found {
		return engine.Transition{}, domain.NotFoundError{Resource: "campaign"}
	}

	tr, err := fn(campaign, lookup)
	if err != nil {
		return engine.Transition{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.logs[req.Log.ID]; ok {
		return engine.Transition{}, domain.Reject(domain.CodeDuplicateCommand, "command %s already applied", req.Log.ID)
	}

	if t := tr.Transfer; t.Amount > 0 {
		if s.balances[t.From] < t.Amount {
			return engine.Transition{}, domain.Reject(domain.CodeInvalidAmount, "insufficient balance on %s", t.From)
		}
		s.balances[t.From] -= t.Amount
		s.balances[t.To] += t.Amount
	}

	tr.Campaign.Version = campaign.Version + 1
	s.campaigns[tr.Campaign.Slot] = tr.Campaign
	if tr.Contributor != nil {
		s.contributors[tr.Contributor.Slot] = *tr.Contributor
	}
	s.logs[req.Log.ID] = req.Log

	return tr, nil
}

func (s *Store) GetCampaign(ctx context.Context, slot string) (domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[slot]
	if !ok {
		return domain.Campaign{}, domain.NotFoundError{Resource: "campaign"}
	}
	return c, nil
}

func (s *Store) GetContributor(ctx context.Context, slot string) (domain.Contributor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contributors[slot]
	if !ok {
		return domain.Contributor{}, domain.NotFoundError{Resource: "contributor"}
	}
	return c, nil
}

func (s *Store) Snapshot(ctx context.Context, slot string) (usecase.CampaignSnapshot, error) {
	unlock := s.lock(slot)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[slot]
	if !ok {
		return usecase.CampaignSnapshot{}, domain.NotFoundError{Resource: "campaign"}
	}

	return usecase.CampaignSnapshot{
		Campaign:     c,
		Contributors: s.collect(func(r domain.Contributor) bool { return r.Campaign == slot }),
		Held:         s.balances[slot],
	}, nil
}

func (s *Store) ListContributors(ctx context.Context, campaign string) ([]domain.Contributor, error) {
	return s.filter(func(c domain.Contributor) bool { return c.Campaign == campaign }), nil
}

func (s *Store) ListPositions(ctx context.Context, owner string) ([]domain.Contributor, error) {
	return s.filter(func(c domain.Contributor) bool { return c.Owner == owner }), nil
}

func (s *Store) filter(pred func(domain.Contributor) bool) []domain.Contributor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(pred)
}

// collect expects s.mu to be held.
func (s *Store) collect(pred func(domain.Contributor) bool) []domain.Contributor {
	out := []domain.Contributor{}
	for _, c := range s.contributors {
		if pred(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

func (s *Store) Balance(ctx context.Context, address string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[address], nil
}

func (s *Store) SeedBalances(ctx context.Context, balances map[string]uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for address, amount := range balances {
		if _, ok := s.balances[address]; !ok {
			s.balances[address] = amount
		}
	}
	return nil
}
