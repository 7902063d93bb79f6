package worker

// alert_worker.go
// Processes low-stock alert jobs from QueueLowStock and mails them to the
// replenishment inbox. SMTP goes through the circuit breaker so a downed relay
// fast-fails instead of tying up the pool.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockledger/internal/infra"
	"stockledger/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const maxAlertAttempts = 3

// AlertWorker delivers low-stock alerts by email.
type AlertWorker struct {
	mailer    *infra.Mailer
	cb        *infra.CircuitBreaker
	rdb       *redis.Client
	recipient string
}

func NewAlertWorker(mailer *infra.Mailer, cb *infra.CircuitBreaker, rdb *redis.Client, recipient string) *AlertWorker {
	return &AlertWorker{mailer: mailer, cb: cb, rdb: rdb, recipient: recipient}
}

// Process sends one alert, retrying transient SMTP failures before giving the
// job to the DLQ.
func (w *AlertWorker) Process(ctx context.Context, raw json.RawMessage) {
	var alert service.LowStockAlert
	if err := json.Unmarshal(raw, &alert); err != nil {
		log.Error().Err(err).Msg("alert_worker: invalid payload")
		return
	}
	if w.recipient == "" {
		log.Warn().Msg("alert_worker: no recipient configured, dropping alert")
		return
	}

	subject := fmt.Sprintf("Low stock: product %s in warehouse %s", alert.ProductID, alert.WarehouseID)
	body := fmt.Sprintf(
		"Available quantity %s %s has fallen to or under the reorder point %s.\n\nWarehouse: %s\nProduct:   %s\n",
		alert.AvailableQuantity, alert.UnitOfMeasure, alert.ReorderPoint,
		alert.WarehouseID, alert.ProductID,
	)

	var lastErr error
	for attempt := 1; attempt <= maxAlertAttempts; attempt++ {
		lastErr = w.cb.Execute(func() error {
			return w.mailer.SendAlert(w.recipient, subject, body)
		})
		if lastErr == nil {
			log.Info().
				Str("warehouse_id", alert.WarehouseID.String()).
				Str("product_id", alert.ProductID.String()).
				Msg("alert_worker: low stock alert sent")
			return
		}
		if lastErr == infra.ErrCircuitOpen {
			// No point retrying in a tight loop while the breaker is open.
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}

	log.Error().Err(lastErr).
		Str("recipient", w.recipient).
		Msg("alert_worker: delivery failed, sending to DLQ")
	SendToDLQ(ctx, w.rdb, QueueLowStock, "low_stock", raw, lastErr.Error(), maxAlertAttempts)
}
