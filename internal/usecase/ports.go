package usecase

import (
	"context"
	"time"

	"github.com/totegamma/escrow-ledger"
	"github.com/totegamma/escrow-ledger/internal/domain"
	"github.com/totegamma/escrow-ledger/internal/engine"
)

// CommandLog is the signed command persisted alongside its effect.
type CommandLog struct {
	ID       string
	Signer   string
	Schema   string
	Document string
	Proof    string
}

// ApplyRequest names the records a transition touches.
type ApplyRequest struct {
	Campaign    string
	Contributor string // empty for campaign-only operations
	Owner       string // owner of the contributor record if it has to be created
	Log         CommandLog
}

// ApplyFunc computes a transition from the locked, current records.
type ApplyFunc func(campaign domain.Campaign, position domain.PositionLookup) (engine.Transition, error)

// LedgerRepository is the transactional substrate.
//
// Apply must hold an exclusive lock on the campaign slot while fn runs and
// commit the returned records, transfer and command log together or not at all.
// Snapshot reads a campaign, its contributor records and its held balance
// while no transition of that campaign can commit.
// SeedBalances only credits addresses that hold no balance yet, so it can be
// replayed on every start.
// An unaffordable transfer fails with domain.ErrInvalidAmount and a repeated
// command id with domain.ErrDuplicateCommand.
type LedgerRepository interface {
	OpenCampaign(ctx context.Context, campaign domain.Campaign, log CommandLog) error
	Apply(ctx context.Context, req ApplyRequest, fn ApplyFunc) (engine.Transition, error)
	GetCampaign(ctx context.Context, slot string) (domain.Campaign, error)
	GetContributor(ctx context.Context, slot string) (domain.Contributor, error)
	Snapshot(ctx context.Context, slot string) (CampaignSnapshot, error)
	ListContributors(ctx context.Context, campaign string) ([]domain.Contributor, error)
	ListPositions(ctx context.Context, owner string) ([]domain.Contributor, error)
	Balance(ctx context.Context, address string) (uint64, error)
	SeedBalances(ctx context.Context, balances map[string]uint64) error
}

type Clock interface {
	Now() time.Time
}

// EventPublisher fans out committed ledger events.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, event escrow.Event) error
}

// CampaignSnapshot is one consistent state of a campaign.
type CampaignSnapshot struct {
	Campaign     domain.Campaign
	Contributors []domain.Contributor
	Held         uint64
}

// CachedCampaign is what the campaign cache stores; the phase is derived on read.
// A tombstone marks a version that was committed but not yet read back.
type CachedCampaign struct {
	Campaign  domain.Campaign
	Held      uint64
	Tombstone bool
}

// Supersedes reports whether next may replace current in the cache. Newer
// versions win; at equal versions a live entry replaces a tombstone.
func (next CachedCampaign) Supersedes(current CachedCampaign) bool {
	switch {
	case next.Campaign.Version != current.Campaign.Version:
		return next.Campaign.Version > current.Campaign.Version
	default:
		return current.Tombstone && !next.Tombstone
	}
}

// CampaignCache stores campaign views. Set and Invalidate must only write
// entries that supersede the stored one, so a fill racing a commit can never
// bring back an older version.
type CampaignCache interface {
	Get(ctx context.Context, slot string) (CachedCampaign, bool)
	Set(ctx context.Context, entry CachedCampaign) error
	Invalidate(ctx context.Context, slot string, version uint64) error
}
