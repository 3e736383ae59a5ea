package service

import (
	"context"
	"time"

	"github.com/jarvishq/jarvisd/internal/domain"
)

// RunMaintenance loops until ctx is cancelled, expiring overdue approvals
// (and cancelling their runs) and sweeping expired memories on every tick.
func (s *Service) RunMaintenance(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("maintenance loop started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("maintenance loop stopped")
			return
		case <-ticker.C:
			s.maintenanceTick(ctx)
		}
	}
}

func (s *Service) maintenanceTick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if n, err := s.ExpireOverdueApprovals(tickCtx); err != nil {
		s.log.Warn("approval expiry sweep failed", "err", err)
	} else if n > 0 {
		s.log.Info("expired overdue approvals", "count", n)
	}

	if _, err := s.SweepExpiredMemories(tickCtx); err != nil {
		s.log.Warn("memory expiry sweep failed", "err", err)
	}
}

// ExpireOverdueApprovals expires pending approvals past the confirmation
// window and cancels their paused runs.
func (s *Service) ExpireOverdueApprovals(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.gateway.timeout)
	overdue, err := s.store.ListOverdueApprovals(ctx, cutoff, 100)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, approval := range overdue {
		ok, err := s.store.DecideApprovalIfPending(ctx, approval.ApprovalID, domain.DecisionExpired, "confirmation window elapsed")
		if err != nil {
			s.log.Warn("failed to expire approval", "approval_id", approval.ApprovalID, "err", err)
			continue
		}
		if !ok {
			continue
		}
		expired++
		if _, err := s.cancel(ctx, approval.RunID, "confirmation window elapsed"); err != nil {
			s.log.Warn("failed to cancel run for expired approval", "run_id", approval.RunID, "err", err)
		}
	}
	return expired, nil
}
