package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"tradeserver/internal/adapters/exchanges"
	"tradeserver/internal/domain/position"
	positionservice "tradeserver/internal/services/position"
	"tradeserver/pkg/errors"
	"tradeserver/pkg/logger"
)

// Action names accepted by the manage endpoint
const (
	ActionLong        = "Long"
	ActionShort       = "Short"
	ActionCloseLong   = "CloseLong"
	ActionCloseShort  = "CloseShort"
	ActionCloseByID   = "CloseById"
	ActionDeleteByID  = "DeleteById"
	ActionBulkDelete  = "BulkDelete"
	ActionUpdate      = "UpdateProfits"
	ActionRecalculate = "RecalculateHistoricalProfits"
)

// PositionHandler exposes the position lifecycle over HTTP
type PositionHandler struct {
	service    *positionservice.Service
	tracker    *positionservice.Tracker
	recalc     *positionservice.Recalculator
	aggregator *positionservice.Aggregator
	prices     exchanges.PriceSource
	log        *logger.Logger
}

// NewPositionHandler creates a new position handler
func NewPositionHandler(
	service *positionservice.Service,
	tracker *positionservice.Tracker,
	recalc *positionservice.Recalculator,
	aggregator *positionservice.Aggregator,
	prices exchanges.PriceSource,
	log *logger.Logger,
) *PositionHandler {
	return &PositionHandler{
		service:    service,
		tracker:    tracker,
		recalc:     recalc,
		aggregator: aggregator,
		prices:     prices,
		log:        log,
	}
}

// ManageRequest is the body of POST /manage/{coin}
type ManageRequest struct {
	Action       string            `json:"action"`
	PositionSize decimal.Decimal   `json:"positionSize"`
	PositionID   string            `json:"positionId"`
	Filter       *BulkDeleteFilter `json:"filter"`
}

// BulkDeleteFilter narrows a BulkDelete action
type BulkDeleteFilter struct {
	CoinName string `json:"coinName"`
	Side     string `json:"positionSide"`
	Status   string `json:"status"`
}

// HandleManage dispatches position lifecycle actions.
// Route: POST /manage/{coin}?tableName=
func (h *PositionHandler) HandleManage(w http.ResponseWriter, r *http.Request) {
	coin := r.PathValue("coin")
	table := r.URL.Query().Get("tableName")

	var req ManageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.Wrapf(errors.ErrInvalidInput, "malformed body: %v", err))
		return
	}

	ctx := r.Context()

	switch req.Action {
	case ActionLong, ActionShort:
		side := position.SideLong
		if req.Action == ActionShort {
			side = position.SideShort
		}

		pos, err := h.service.Open(ctx, table, coin, side, req.PositionSize)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.respond(w, http.StatusCreated, map[string]interface{}{
			"message":  "position opened",
			"position": pos,
		})

	case ActionCloseLong, ActionCloseShort:
		side := position.SideLong
		if req.Action == ActionCloseShort {
			side = position.SideShort
		}

		closed, err := h.service.CloseBySide(ctx, table, coin, side)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.respond(w, http.StatusOK, map[string]interface{}{
			"message":   "positions closed",
			"closed":    len(closed),
			"positions": closed,
		})

	case ActionCloseByID:
		pos, err := h.service.CloseByID(ctx, table, req.PositionID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.respond(w, http.StatusOK, map[string]interface{}{
			"message":  "position closed",
			"position": pos,
		})

	case ActionDeleteByID:
		if err := h.service.DeleteByID(ctx, table, req.PositionID); err != nil {
			h.writeError(w, err)
			return
		}
		h.respond(w, http.StatusOK, map[string]interface{}{
			"message": "position deleted",
			"deleted": req.PositionID,
		})

	case ActionBulkDelete:
		filter, err := parseFilter(req.Filter)
		if err != nil {
			h.writeError(w, err)
			return
		}

		deleted, err := h.service.BulkDelete(ctx, table, filter)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.respond(w, http.StatusOK, map[string]interface{}{
			"message": "positions deleted",
			"deleted": deleted,
		})

	case ActionUpdate:
		updated, err := h.tracker.UpdateProfits(ctx, h.service.ResolveTable(table))
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.respond(w, http.StatusOK, map[string]interface{}{
			"message": "profits updated",
			"updated": updated,
		})

	case ActionRecalculate:
		recalculated, err := h.recalc.RecalculateProfits(ctx, h.service.ResolveTable(table))
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.respond(w, http.StatusOK, map[string]interface{}{
			"message":      "profits recalculated",
			"recalculated": recalculated,
		})

	default:
		h.writeError(w, errors.Wrapf(errors.ErrInvalidInput, "unknown action %q", req.Action))
	}
}

// HandleGetTrades lists positions with optional coin and status filters.
// Route: GET /gettrades?tableName=&coinname=&status=
func (h *PositionHandler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := position.Filter{CoinName: q.Get("coinname")}

	if raw := q.Get("status"); raw != "" {
		status, err := normalizeStatus(raw)
		if err != nil {
			h.writeError(w, err)
			return
		}
		filter.Status = status
	}

	positions, err := h.service.GetPositions(r.Context(), q.Get("tableName"), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if positions == nil {
		positions = []*position.Position{}
	}

	h.respond(w, http.StatusOK, positions)
}

// HandleTables lists the available position tables.
// Route: GET /tables
func (h *PositionHandler) HandleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.service.Tables(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{"tables": tables})
}

// HandleGetPrice returns the current price for a coin.
// Route: GET /getprice?coinname=
func (h *PositionHandler) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	coin := r.URL.Query().Get("coinname")
	if coin == "" {
		h.writeError(w, errors.Wrap(errors.ErrInvalidInput, "coinname required"))
		return
	}

	price, err := h.prices.CurrentPrice(r.Context(), coin)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"coinName": coin,
		"price":    price,
	})
}

// HandlePositionCount counts open positions for a coin.
// Route: GET /getPositionCount/{coin}/{table}?side=
func (h *PositionHandler) HandlePositionCount(w http.ResponseWriter, r *http.Request) {
	coin := r.PathValue("coin")
	table := r.PathValue("table")

	var side position.Side
	if raw := r.URL.Query().Get("side"); raw != "" {
		side = position.Side(raw)
		if !side.Valid() {
			h.writeError(w, errors.Wrapf(errors.ErrInvalidInput, "side %q", raw))
			return
		}
	}

	count, err := h.service.CountOpen(r.Context(), table, coin, side)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"coinName": coin,
		"count":    count,
	})
}

// HandleGetBest returns per-coin realized performance, best first.
// Route: GET /getbest?table=
func (h *PositionHandler) HandleGetBest(w http.ResponseWriter, r *http.Request) {
	table := h.service.ResolveTable(r.URL.Query().Get("table"))

	results, err := h.aggregator.BestPerforming(r.Context(), table)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if results == nil {
		results = []*position.CoinPerformance{}
	}

	h.respond(w, http.StatusOK, results)
}

func parseFilter(raw *BulkDeleteFilter) (position.Filter, error) {
	if raw == nil {
		return position.Filter{}, errors.Wrap(errors.ErrInvalidInput, "bulk delete requires a filter")
	}

	filter := position.Filter{CoinName: raw.CoinName}

	if raw.Side != "" {
		side := position.Side(raw.Side)
		if !side.Valid() {
			return position.Filter{}, errors.Wrapf(errors.ErrInvalidInput, "side %q", raw.Side)
		}
		filter.Side = side
	}

	if raw.Status != "" {
		status, err := normalizeStatus(raw.Status)
		if err != nil {
			return position.Filter{}, err
		}
		filter.Status = status
	}

	return filter, nil
}

// normalizeStatus accepts "closed" as an alias of the stored "close" value
func normalizeStatus(raw string) (position.Status, error) {
	if raw == "closed" {
		return position.StatusClosed, nil
	}

	status := position.Status(raw)
	if !status.Valid() {
		return "", errors.Wrapf(errors.ErrInvalidInput, "status %q", raw)
	}
	return status, nil
}

func (h *PositionHandler) respond(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Errorw("Failed to encode response", "error", err)
	}
}

// writeError maps service errors onto HTTP statuses: client mistakes get
// 4xx, upstream and storage failures get 5xx.
func (h *PositionHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, errors.ErrInvalidInput),
		errors.Is(err, errors.ErrInvalidPositionID),
		errors.Is(err, errors.ErrInvalidTableName),
		errors.Is(err, errors.ErrZeroEntryPrice):
		status = http.StatusBadRequest
	case errors.Is(err, errors.ErrPositionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errors.ErrPositionConflict):
		status = http.StatusConflict
	case errors.Is(err, errors.ErrPriceUnavailable), errors.Is(err, errors.ErrRateLimitExceeded):
		status = http.StatusBadGateway
	}

	if status >= 500 {
		h.log.Errorw("Request failed", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
