package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/escrow-ledger"
	"github.com/totegamma/escrow-ledger/internal/domain"
	"github.com/totegamma/escrow-ledger/internal/present/rest/presenter"
	"github.com/totegamma/escrow-ledger/internal/usecase"
)

// RealtimeSource streams ledger events for a changing set of channels.
type RealtimeSource interface {
	Realtime(ctx context.Context, input <-chan []string, output chan<- escrow.Event)
}

type Handler struct {
	config domain.Config
	ledger *usecase.LedgerUsecase
	signal RealtimeSource
}

func NewHandler(
	config domain.Config,
	ledger *usecase.LedgerUsecase,
	signal RealtimeSource,
) *Handler {
	return &Handler{
		config: config,
		ledger: ledger,
		signal: signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/escrow", h.handleWellKnown)
	e.POST("/commit", h.handleCommit)
	e.GET("/campaign/:slot", h.handleCampaign)
	e.GET("/campaign/:slot/contributors", h.handleContributors)
	e.GET("/campaign/:slot/refundable", h.handleRefundable)
	e.GET("/campaign/:slot/audit", h.handleAudit)
	e.GET("/balance/:address", h.handleBalance)
	e.GET("/api/v1/positions", h.handlePositions)
	e.GET("/realtime", h.handleRealtime)
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	wellknown := escrow.WellKnownEscrow{
		Version: "1.0",
		Domain:  h.config.FQDN,
		Address: h.config.Address,
		Endpoints: map[string]escrow.EscrowEndpoint{
			"net.escrow.commit": {
				Template: "/commit",
				Method:   "POST",
			},
			"net.escrow.campaign": {
				Template: "/campaign/{slot}",
				Method:   "GET",
			},
			"net.escrow.campaign.contributors": {
				Template: "/campaign/{slot}/contributors",
				Method:   "GET",
			},
			"net.escrow.campaign.refundable": {
				Template: "/campaign/{slot}/refundable",
				Method:   "GET",
			},
			"net.escrow.campaign.audit": {
				Template: "/campaign/{slot}/audit",
				Method:   "GET",
			},
			"net.escrow.balance": {
				Template: "/balance/{address}",
				Method:   "GET",
			},
			"net.escrow.positions": {
				Template: "/api/v1/positions",
				Method:   "GET",
			},
			"net.escrow.realtime": {
				Template: "/realtime",
				Method:   "GET",
			},
		},
	}
	return presenter.OK(c, wellknown)
}

func (h *Handler) handleCommit(c echo.Context) error {
	ctx := c.Request().Context()

	var sc escrow.SignedCommand
	err := c.Bind(&sc)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	if sc.Document == "" {
		return presenter.BadRequestMessage(c, "document is required")
	}

	receipt, err := h.ledger.Commit(ctx, sc)
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.OK(c, receipt)
}

func slotParam(c echo.Context) (string, error) {
	raw, err := url.PathUnescape(c.Param("slot"))
	if err != nil {
		return "", fmt.Errorf("invalid slot")
	}
	return escrow.NormalizeSlot(raw)
}

func (h *Handler) handleCampaign(c echo.Context) error {
	slot, err := slotParam(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	view, err := h.ledger.GetCampaign(c.Request().Context(), slot)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, view)
}

func (h *Handler) handleContributors(c echo.Context) error {
	slot, err := slotParam(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	contributors, err := h.ledger.ListContributors(c.Request().Context(), slot)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, contributors)
}

func (h *Handler) handleRefundable(c echo.Context) error {
	slot, err := slotParam(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	refundable, err := h.ledger.IsRefundable(c.Request().Context(), slot)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"campaign": slot, "refundable": refundable})
}

func (h *Handler) handleAudit(c echo.Context) error {
	slot, err := slotParam(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	result, err := h.ledger.Audit(c.Request().Context(), slot)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, result)
}

func (h *Handler) handleBalance(c echo.Context) error {
	address := c.Param("address")

	balance, err := h.ledger.Balance(c.Request().Context(), address)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"address": address, "balance": balance})
}

func (h *Handler) handlePositions(c echo.Context) error {
	ctx := c.Request().Context()

	requester, ok := ctx.Value(domain.RequesterIdCtxKey).(string)
	if !ok || requester == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	positions, err := h.ledger.Positions(ctx, requester)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, positions)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type      string   `json:"type"`
	Campaigns []string `json:"campaigns"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	if h.signal == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "realtime is not enabled"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan escrow.Event)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				channels := make([]string, 0, len(req.Campaigns))
				for _, campaign := range req.Campaigns {
					slot, err := escrow.NormalizeSlot(campaign)
					if err != nil {
						continue
					}
					channels = append(channels, domain.CampaignChannel(slot))
				}
				select {
				case input <- channels:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", channels),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
