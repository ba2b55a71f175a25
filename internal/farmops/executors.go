// Package farmops owns the side effects behind gated farm operations. Each
// executor runs once when its approval is granted; the approval record itself
// is managed elsewhere.
package farmops

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrovista-erp/agrovista-erp/internal/approvals"
)

var errMissingContext = errors.New("farmops: approval context incomplete")

// Executors builds the auto-execution handlers for gated actions.
type Executors struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewExecutors constructs the executor set.
func NewExecutors(pool *pgxpool.Pool, logger *slog.Logger) *Executors {
	return &Executors{pool: pool, logger: logger}
}

// RegisterAll binds every non-manual gated action to its handler.
func (e *Executors) RegisterAll(registry *approvals.Registry) {
	registry.Register("exportacion.kanban.advance_without_docs", e.AdvanceShipmentWithoutDocs)
	registry.Register("inventario.ajuste.negativo", e.NegativeStockAdjustment)
	registry.Register("inventario.baja.merma", e.ShrinkageWriteOff)
}

// AdvanceShipmentWithoutDocs moves an export shipment to its next kanban
// stage even though its document checklist is incomplete.
func (e *Executors) AdvanceShipmentWithoutDocs(ctx context.Context, contextID *string, contextData map[string]string) error {
	if contextID == nil || *contextID == "" {
		return errMissingContext
	}
	shipmentID, err := strconv.ParseInt(*contextID, 10, 64)
	if err != nil {
		return errMissingContext
	}
	tag, err := e.pool.Exec(ctx, `UPDATE export_shipments
SET stage = CASE stage
	WHEN 'PREPARACION' THEN 'DOCUMENTACION'
	WHEN 'DOCUMENTACION' THEN 'EMBARQUE'
	WHEN 'EMBARQUE' THEN 'TRANSITO'
	WHEN 'TRANSITO' THEN 'ENTREGADO'
	END,
docs_waived = TRUE, updated_at = NOW()
WHERE id = $1 AND stage <> 'ENTREGADO'`, shipmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("farmops: shipment not found or already delivered")
	}
	e.logger.Info("shipment advanced without documents", slog.Int64("shipment_id", shipmentID))
	return nil
}

// NegativeStockAdjustment records a stock movement that takes an input's
// balance below zero.
func (e *Executors) NegativeStockAdjustment(ctx context.Context, contextID *string, contextData map[string]string) error {
	return e.insertMovement(ctx, "AJUSTE_NEGATIVO", contextID, contextData)
}

// ShrinkageWriteOff records a write-off movement for spoiled or lost stock.
func (e *Executors) ShrinkageWriteOff(ctx context.Context, contextID *string, contextData map[string]string) error {
	return e.insertMovement(ctx, "BAJA_MERMA", contextID, contextData)
}

func (e *Executors) insertMovement(ctx context.Context, kind string, contextID *string, contextData map[string]string) error {
	if contextID == nil || *contextID == "" {
		return errMissingContext
	}
	itemID, err := strconv.ParseInt(*contextID, 10, 64)
	if err != nil {
		return errMissingContext
	}
	quantity, err := strconv.ParseFloat(contextData["quantity"], 64)
	if err != nil || quantity <= 0 {
		return errMissingContext
	}
	_, err = e.pool.Exec(ctx, `INSERT INTO stock_movements (item_id, kind, quantity, reason)
VALUES ($1, $2, -$3, NULLIF($4, ''))`, itemID, kind, quantity, contextData["reason"])
	if err != nil {
		return err
	}
	e.logger.Info("stock movement recorded",
		slog.Int64("item_id", itemID),
		slog.String("kind", kind),
		slog.Float64("quantity", quantity))
	return nil
}
