package usecase

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/totegamma/escrow-ledger"
	"github.com/totegamma/escrow-ledger/internal/domain"
	"github.com/totegamma/escrow-ledger/internal/engine"
	"github.com/totegamma/escrow-ledger/schemas"
)

var tracer = otel.Tracer("ledger")

type OpenInput struct {
	Creator  string
	Goal     uint64
	Deadline time.Time
	Log      CommandLog
}

type ContributeInput struct {
	Caller   string
	Campaign string
	Amount   uint64
	Log      CommandLog
}

type ExitInput struct {
	Caller   string
	Campaign string
	Log      CommandLog
}

type ClaimInput struct {
	Caller   string
	Campaign string
	Log      CommandLog
}

type LedgerUsecase struct {
	repo   LedgerRepository
	clock  Clock
	signal EventPublisher
	cache  CampaignCache
}

// NewLedgerUsecase wires the ledger. signal and cache may be nil.
func NewLedgerUsecase(repo LedgerRepository, clock Clock, signal EventPublisher, cache CampaignCache) *LedgerUsecase {
	return &LedgerUsecase{
		repo:   repo,
		clock:  clock,
		signal: signal,
		cache:  cache,
	}
}

// Commit authenticates a signed command and dispatches it by schema.
// The verified signer is the caller identity of the operation.
func (uc *LedgerUsecase) Commit(ctx context.Context, sc escrow.SignedCommand) (escrow.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.Commit")
	defer span.End()

	var doc escrow.Document[json.RawMessage]
	if err := json.Unmarshal([]byte(sc.Document), &doc); err != nil {
		return escrow.Receipt{}, domain.Reject(domain.CodeInvalidCommand, "malformed document: %v", err)
	}

	if !escrow.IsIdentity(doc.Signer) {
		return escrow.Receipt{}, domain.Reject(domain.CodeInvalidCommand, "invalid signer %q", doc.Signer)
	}

	if sc.Proof.Type != escrow.ProofTypeEcrecover {
		return escrow.Receipt{}, domain.Reject(domain.CodeInvalidSignature, "unsupported proof type %q", sc.Proof.Type)
	}

	signature, err := hex.DecodeString(sc.Proof.Signature)
	if err != nil {
		return escrow.Receipt{}, domain.Reject(domain.CodeInvalidSignature, "signature is not hex")
	}

	if err := escrow.VerifySignature([]byte(sc.Document), signature, doc.Signer); err != nil {
		span.RecordError(err)
		return escrow.Receipt{}, domain.Reject(domain.CodeInvalidSignature, "%v", err)
	}

	log := CommandLog{
		ID:       escrow.CommandID(sc.Document),
		Signer:   doc.Signer,
		Schema:   doc.Schema,
		Document: sc.Document,
		Proof:    sc.Proof.Signature,
	}
	span.SetAttributes(
		attribute.String("command", log.ID),
		attribute.String("schema", doc.Schema),
		attribute.String("signer", doc.Signer),
	)

	switch doc.Schema {
	case schemas.OpenCampaignURL:
		var value schemas.OpenCampaign
		if err := json.Unmarshal(doc.Value, &value); err != nil {
			return escrow.Receipt{}, domain.Reject(domain.CodeInvalidCommand, "malformed open-campaign value: %v", err)
		}
		return uc.OpenCampaign(ctx, OpenInput{
			Creator:  doc.Signer,
			Goal:     value.Goal,
			Deadline: value.Deadline,
			Log:      log,
		})
	case schemas.ContributeURL:
		var value schemas.Contribute
		if err := json.Unmarshal(doc.Value, &value); err != nil {
			return escrow.Receipt{}, domain.Reject(domain.CodeInvalidCommand, "malformed contribute value: %v", err)
		}
		return uc.Contribute(ctx, ContributeInput{
			Caller:   doc.Signer,
			Campaign: value.Campaign,
			Amount:   value.Amount,
			Log:      log,
		})
	case schemas.ExitURL:
		var value schemas.Exit
		if err := json.Unmarshal(doc.Value, &value); err != nil {
			return escrow.Receipt{}, domain.Reject(domain.CodeInvalidCommand, "malformed exit value: %v", err)
		}
		return uc.Exit(ctx, ExitInput{
			Caller:   doc.Signer,
			Campaign: value.Campaign,
			Log:      log,
		})
	case schemas.ClaimURL:
		var value schemas.Claim
		if err := json.Unmarshal(doc.Value, &value); err != nil {
			return escrow.Receipt{}, domain.Reject(domain.CodeInvalidCommand, "malformed claim value: %v", err)
		}
		return uc.Claim(ctx, ClaimInput{
			Caller:   doc.Signer,
			Campaign: value.Campaign,
			Log:      log,
		})
	default:
		return escrow.Receipt{}, domain.Reject(domain.CodeInvalidCommand, "unknown schema %q", doc.Schema)
	}
}

func (uc *LedgerUsecase) OpenCampaign(ctx context.Context, input OpenInput) (escrow.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.OpenCampaign")
	defer span.End()

	slot, err := escrow.CampaignSlot(input.Creator)
	if err != nil {
		return escrow.Receipt{}, domain.Reject(domain.CodeInvalidCommand, "%v", err)
	}
	span.SetAttributes(attribute.String("campaign", slot))

	campaign, err := engine.Open(slot, input.Creator, input.Goal, input.Deadline, uc.clock.Now())
	if err != nil {
		span.RecordError(err)
		return escrow.Receipt{}, err
	}

	if err := uc.repo.OpenCampaign(ctx, campaign, input.Log); err != nil {
		span.RecordError(err)
		return escrow.Receipt{}, err
	}

	uc.afterCommit(ctx, span, domain.EventCampaignOpened, campaign, input.Creator, 0)

	return escrow.Receipt{
		CommandID: input.Log.ID,
		Schema:    schemas.OpenCampaignURL,
		Campaign:  slot,
		Total:     campaign.Total,
	}, nil
}

func (uc *LedgerUsecase) Contribute(ctx context.Context, input ContributeInput) (escrow.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.Contribute")
	defer span.End()

	slot, err := escrow.NormalizeSlot(input.Campaign)
	if err != nil {
		return escrow.Receipt{}, domain.Reject(domain.CodeInvalidCommand, "%v", err)
	}
	position, err := escrow.ContributorSlot(slot, input.Caller)
	if err != nil {
		return escrow.Receipt{}, domain.Reject(domain.CodeInvalidCommand, "%v", err)
	}
	span.SetAttributes(attribute.String("campaign", slot), attribute.String("amount", strconv.FormatUint(input.Amount, 10)))

	tr, err := uc.repo.Apply(ctx, ApplyRequest{
		Campaign:    slot,
		Contributor: position,
		Owner:       input.Caller,
		Log:         input.Log,
	}, func(campaign domain.Campaign, lookup domain.PositionLookup) (engine.Transition, error) {
		return engine.Contribute(campaign, lookup, input.Caller, input.Amount, uc.clock.Now())
	})
	if err != nil {
		span.RecordError(err)
		return escrow.Receipt{}, err
	}

	uc.afterCommit(ctx, span, tr.Event, tr.Campaign, input.Caller, tr.Transfer.Amount)

	return receipt(input.Log, schemas.ContributeURL, tr), nil
}

func (uc *LedgerUsecase) Exit(ctx context.Context, input ExitInput) (escrow.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.Exit")
	defer span.End()

	slot, err := escrow.NormalizeSlot(input.Campaign)
	if err != nil {
		return escrow.Receipt{}, domain.Reject(domain.CodeInvalidCommand, "%v", err)
	}
	position, err := escrow.ContributorSlot(slot, input.Caller)
	if err != nil {
		return escrow.Receipt{}, domain.Reject(domain.CodeInvalidCommand, "%v", err)
	}
	span.SetAttributes(attribute.String("campaign", slot))

	tr, err := uc.repo.Apply(ctx, ApplyRequest{
		Campaign:    slot,
		Contributor: position,
		Owner:       input.Caller,
		Log:         input.Log,
	}, func(campaign domain.Campaign, lookup domain.PositionLookup) (engine.Transition, error) {
		return engine.Exit(campaign, lookup, input.Caller, uc.clock.Now())
	})
	if err != nil {
		span.RecordError(err)
		return escrow.Receipt{}, err
	}

	uc.afterCommit(ctx, span, tr.Event, tr.Campaign, input.Caller, tr.Transfer.Amount)

	return receipt(input.Log, schemas.ExitURL, tr), nil
}

func (uc *LedgerUsecase) Claim(ctx context.Context, input ClaimInput) (escrow.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.Claim")
	defer span.End()

	slot, err := escrow.NormalizeSlot(input.Campaign)
	if err != nil {
		return escrow.Receipt{}, domain.Reject(domain.CodeInvalidCommand, "%v", err)
	}
	span.SetAttributes(attribute.String("campaign", slot))

	tr, err := uc.repo.Apply(ctx, ApplyRequest{
		Campaign: slot,
		Log:      input.Log,
	}, func(campaign domain.Campaign, _ domain.PositionLookup) (engine.Transition, error) {
		return engine.Claim(campaign, input.Caller, uc.clock.Now())
	})
	if err != nil {
		span.RecordError(err)
		return escrow.Receipt{}, err
	}

	uc.afterCommit(ctx, span, tr.Event, tr.Campaign, input.Caller, tr.Transfer.Amount)

	return receipt(input.Log, schemas.ClaimURL, tr), nil
}

// afterCommit runs once a transition is durable; failures here are logged only.
// The cache keeps a tombstone for the committed version so that a fill read
// before the commit cannot overwrite it.
func (uc *LedgerUsecase) afterCommit(ctx context.Context, span trace.Span, event string, campaign domain.Campaign, actor string, amount uint64) {
	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx, campaign.Slot, campaign.Version); err != nil {
			span.RecordError(err)
			slog.WarnContext(
				ctx, "failed to invalidate campaign cache",
				slog.String("campaign", campaign.Slot),
				slog.String("error", err.Error()),
				slog.String("module", "ledger"),
			)
		}
	}

	if uc.signal != nil {
		err := uc.signal.Publish(ctx, domain.CampaignChannel(campaign.Slot), escrow.Event{
			Type:      event,
			Campaign:  campaign.Slot,
			Actor:     actor,
			Amount:    amount,
			Total:     campaign.Total,
			Timestamp: uc.clock.Now(),
		})
		if err != nil {
			span.RecordError(err)
			slog.WarnContext(
				ctx, "failed to publish ledger event",
				slog.String("campaign", campaign.Slot),
				slog.String("event", event),
				slog.String("error", err.Error()),
				slog.String("module", "ledger"),
			)
		}
	}

	slog.InfoContext(
		ctx, fmt.Sprintf("ledger %s", event),
		slog.String("campaign", campaign.Slot),
		slog.String("actor", actor),
		slog.Uint64("amount", amount),
		slog.Uint64("total", campaign.Total),
		slog.String("module", "ledger"),
	)
}

func receipt(log CommandLog, schema string, tr engine.Transition) escrow.Receipt {
	r := escrow.Receipt{
		CommandID: log.ID,
		Schema:    schema,
		Campaign:  tr.Campaign.Slot,
		Transfer: &escrow.Transfer{
			From:   tr.Transfer.From,
			To:     tr.Transfer.To,
			Amount: tr.Transfer.Amount,
		},
		Total: tr.Campaign.Total,
	}
	if tr.Contributor != nil {
		r.Contributor = tr.Contributor.Slot
	}
	return r
}
