package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/driveright-academy/internal/model"
)

const reconcileBatch = 100

// StartPaymentReconciliation периодически сверяет ожидающие платежи со шлюзом.
// Блокируется до отмены ctx. При нулевом интервале ничего не делает.
func (s *Service) StartPaymentReconciliation(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.gateway == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcileBatch(ctx)
		}
	}
}

func (s *Service) reconcileBatch(ctx context.Context) {
	// ключ мог быть удалён в настройках после запуска
	if !s.GatewayEnabled() {
		return
	}

	payments, err := s.repo.ListPendingGatewayPayments(ctx, reconcileBatch)
	if err != nil {
		s.logger.Error("list pending payments", zap.Error(err))
		return
	}

	for i := range payments {
		if ctx.Err() != nil {
			return
		}

		p := &payments[i]
		if err := s.verifyWithGateway(ctx, p); err != nil {
			s.logger.Warn("payment reconciliation failed",
				zap.String("reference", p.TransactionReference),
				zap.Error(err),
			)
			continue
		}
		if p.Status != model.PaymentPending {
			s.logger.Info("payment reconciled",
				zap.String("reference", p.TransactionReference),
				zap.String("status", string(p.Status)),
			)
		}
	}
}
