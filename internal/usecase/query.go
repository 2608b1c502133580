package usecase

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/totegamma/escrow-ledger"
	"github.com/totegamma/escrow-ledger/internal/domain"
	"github.com/totegamma/escrow-ledger/internal/engine"
)

// AuditResult reports whether a campaign's stored state satisfies the ledger invariants.
type AuditResult struct {
	Campaign     string `json:"campaign"`
	Total        uint64 `json:"total"`
	Held         uint64 `json:"held"`
	Contributors int    `json:"contributors"`
	OK           bool   `json:"ok"`
	Violation    string `json:"violation,omitempty"`
}

func (uc *LedgerUsecase) GetCampaign(ctx context.Context, slot string) (escrow.CampaignView, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.GetCampaign")
	defer span.End()

	slot, err := escrow.NormalizeSlot(slot)
	if err != nil {
		return escrow.CampaignView{}, domain.Reject(domain.CodeInvalidCommand, "%v", err)
	}

	if uc.cache != nil {
		if entry, ok := uc.cache.Get(ctx, slot); ok {
			return uc.view(entry), nil
		}
	}

	snapshot, err := uc.repo.Snapshot(ctx, slot)
	if err != nil {
		span.RecordError(err)
		return escrow.CampaignView{}, err
	}

	entry := CachedCampaign{Campaign: snapshot.Campaign, Held: snapshot.Held}
	if uc.cache != nil {
		if err := uc.cache.Set(ctx, entry); err != nil {
			slog.DebugContext(
				ctx, "failed to cache campaign",
				slog.String("campaign", slot),
				slog.String("error", err.Error()),
				slog.String("module", "ledger"),
			)
		}
	}

	return uc.view(entry), nil
}

func (uc *LedgerUsecase) ListContributors(ctx context.Context, campaign string) ([]escrow.ContributorView, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.ListContributors")
	defer span.End()

	slot, err := escrow.NormalizeSlot(campaign)
	if err != nil {
		return nil, domain.Reject(domain.CodeInvalidCommand, "%v", err)
	}

	snapshot, err := uc.repo.Snapshot(ctx, slot)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return contributorViews(snapshot.Contributors), nil
}

// IsRefundable reports whether contributors of a failed campaign still have funds to exit.
func (uc *LedgerUsecase) IsRefundable(ctx context.Context, campaign string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.IsRefundable")
	defer span.End()

	slot, err := escrow.NormalizeSlot(campaign)
	if err != nil {
		return false, domain.Reject(domain.CodeInvalidCommand, "%v", err)
	}

	c, err := uc.repo.GetCampaign(ctx, slot)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	return engine.Refundable(c, uc.clock.Now()), nil
}

// Positions lists every contributor record owned by the address.
func (uc *LedgerUsecase) Positions(ctx context.Context, owner string) ([]escrow.ContributorView, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.Positions")
	defer span.End()

	if !escrow.IsIdentity(owner) {
		return nil, domain.Reject(domain.CodeInvalidCommand, "invalid address %q", owner)
	}

	records, err := uc.repo.ListPositions(ctx, owner)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return contributorViews(records), nil
}

// Balance returns the spendable funds of an identity or a campaign slot.
func (uc *LedgerUsecase) Balance(ctx context.Context, address string) (uint64, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.Balance")
	defer span.End()

	if !escrow.IsIdentity(address) && !escrow.IsSlot(address) {
		return 0, domain.Reject(domain.CodeInvalidCommand, "invalid address %q", address)
	}

	return uc.repo.Balance(ctx, address)
}

// Audit checks the conservation invariants of one campaign against a consistent snapshot of storage.
func (uc *LedgerUsecase) Audit(ctx context.Context, campaign string) (AuditResult, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.Audit")
	defer span.End()

	slot, err := escrow.NormalizeSlot(campaign)
	if err != nil {
		return AuditResult{}, domain.Reject(domain.CodeInvalidCommand, "%v", err)
	}

	snapshot, err := uc.repo.Snapshot(ctx, slot)
	if err != nil {
		span.RecordError(err)
		return AuditResult{}, err
	}

	result := AuditResult{
		Campaign:     slot,
		Total:        snapshot.Campaign.Total,
		Held:         snapshot.Held,
		Contributors: len(snapshot.Contributors),
		OK:           true,
	}

	if err := engine.CheckInvariants(snapshot.Campaign, snapshot.Contributors, snapshot.Held); err != nil {
		result.OK = false
		result.Violation = err.Error()
		slog.ErrorContext(
			ctx, "campaign audit failed",
			slog.String("campaign", slot),
			slog.String("violation", err.Error()),
			slog.String("module", "ledger"),
		)
	}

	return result, nil
}

// Seed credits initial balances. Used for genesis allocations.
func (uc *LedgerUsecase) Seed(ctx context.Context, balances map[string]uint64) error {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.Seed")
	defer span.End()

	for address := range balances {
		if !escrow.IsIdentity(address) {
			return domain.Reject(domain.CodeInvalidCommand, "invalid genesis address %q", address)
		}
	}

	if err := uc.repo.SeedBalances(ctx, balances); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to seed balances")
	}
	return nil
}

func (uc *LedgerUsecase) view(entry CachedCampaign) escrow.CampaignView {
	c := entry.Campaign
	return escrow.CampaignView{
		Slot:      c.Slot,
		Creator:   c.Creator,
		Deadline:  c.Deadline,
		Goal:      c.Goal,
		Total:     c.Total,
		State:     c.State.String(),
		Phase:     c.Phase(uc.clock.Now()).String(),
		Held:      entry.Held,
		CreatedAt: c.CreatedAt,
	}
}

func contributorViews(records []domain.Contributor) []escrow.ContributorView {
	views := make([]escrow.ContributorView, 0, len(records))
	for _, r := range records {
		views = append(views, escrow.ContributorView{
			Slot:     r.Slot,
			Campaign: r.Campaign,
			Owner:    r.Owner,
			Amount:   r.Amount,
			State:    r.State.String(),
		})
	}
	return views
}
