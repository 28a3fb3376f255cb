package salesyncservice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alexkalak/presale_sync/common/models"
)

// Start launches the refresh loop and returns immediately.
// Calling it on a running service is a no-op.
func (s *saleSyncService) Start(ctx context.Context) error {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	if s.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopCh = make(chan struct{})
	s.forceCh = make(chan struct{}, 1)
	s.running = true
	s.wg.Add(1)

	go s.run(loopCtx, s.stopCh, s.forceCh)
	return nil
}

// Stop cancels any in-flight pass and waits for the loop to exit. Nothing the
// loop scheduled touches the state after Stop returns.
func (s *saleSyncService) Stop() {
	s.loopMu.Lock()
	if !s.running {
		s.loopMu.Unlock()
		return
	}
	close(s.stopCh)
	s.cancel()
	s.running = false
	s.loopMu.Unlock()

	s.wg.Wait()
}

// ForceRefresh asks the loop for a pass now. Requests coalesce.
func (s *saleSyncService) ForceRefresh() {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	if !s.running {
		return
	}

	select {
	case s.forceCh <- struct{}{}:
	default:
	}
}

func (s *saleSyncService) run(ctx context.Context, stopCh <-chan struct{}, forceCh <-chan struct{}) {
	defer s.wg.Done()

	s.seedFromSnapshot(ctx)
	s.initialPass(ctx)

	t := time.NewTicker(s.config.SyncInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sale sync: context canceled; stopping")
			return
		case <-stopCh:
			s.logger.Info().Msg("sale sync: stop requested; stopping")
			return
		case <-t.C:
			s.pass(ctx, "timer")
		case <-forceCh:
			s.pass(ctx, "forced")
		}
	}
}

// initialPass fills what the page needs before any wallet is connected.
func (s *saleSyncService) initialPass(ctx context.Context) {
	passCtx, cancel := s.passContext(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.refreshPrice(passCtx)
	}()
	go func() {
		defer wg.Done()
		gas, err := s.rpcClient.GetGasEstimate(passCtx)
		s.metrics.read("gas", err)
		if err != nil {
			s.logger.Warn().Err(err).Msg("gas estimate unavailable")
			return
		}
		s.mu.Lock()
		s.state.Gas = &gas
		s.publishLocked()
		s.mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		if _, err := s.RefreshLeaderboard(passCtx); err != nil {
			s.logger.Warn().Err(err).Msg("initial leaderboard load failed")
		}
	}()
	wg.Wait()

	s.pass(ctx, "initial")
}

func (s *saleSyncService) passContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.PerSyncTimeout
	if dl, ok := parent.Deadline(); ok {
		if remain := time.Until(dl); remain > 0 && remain < timeout {
			timeout = remain
		}
	}
	return context.WithTimeout(parent, timeout)
}

// pass refreshes global stats and, when a wallet is connected, its stats.
// Each value lands as soon as its own read resolves. Failures keep the
// previous value.
func (s *saleSyncService) pass(parent context.Context, trigger string) {
	ctx, cancel := s.passContext(parent)
	defer cancel()

	address, gen, connected := s.currentSession()

	errCh := make(chan error, 5)
	var wg sync.WaitGroup
	spawn := func(f func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- f()
		}()
	}

	spawn(func() error {
		stats, err := s.rpcClient.GetAllTimeStats(ctx)
		s.metrics.read("all_time_stats", err)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.state.GlobalStats = &stats
		s.publishLocked()
		s.mu.Unlock()
		return nil
	})
	spawn(func() error {
		balances, err := s.rpcClient.GetContractBalances(ctx)
		s.metrics.read("contract_balances", err)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.state.Balances = &balances
		s.publishLocked()
		s.mu.Unlock()
		return nil
	})

	if connected {
		spawn(func() error {
			stats, err := s.rpcClient.GetUserStats(ctx, address)
			s.metrics.read("user_stats", err)
			if err != nil {
				return err
			}
			s.applyForSession(gen, func() { s.state.UserStats = &stats })
			return nil
		})
		spawn(func() error {
			balance, err := s.rpcClient.GetNativeBalance(ctx, address)
			s.metrics.read("native_balance", err)
			if err != nil {
				return err
			}
			s.applyForSession(gen, func() { s.state.NativeBalance = balance })
			return nil
		})
		spawn(func() error {
			stats, rank := s.loadReferral(ctx, address)
			s.applyForSession(gen, func() {
				if stats != nil {
					s.state.ReferralStats = stats
				}
				if rank != nil {
					s.state.ReferrerRank = rank
				}
			})
			if stats == nil || rank == nil {
				return errors.New("referral refresh incomplete")
			}
			return nil
		})
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.metrics.passes.WithLabelValues(trigger, _RESULT_ERROR).Inc()
		s.logger.Warn().Err(err).Str("trigger", trigger).Msg("refresh pass incomplete; keeping previous values")
	} else {
		s.metrics.passes.WithLabelValues(trigger, _RESULT_OK).Inc()
	}
	s.metrics.lastPass.SetToCurrentTime()

	if ctx.Err() == nil {
		s.saveSnapshot(parent)
	}
}

// applyForSession runs apply only if the wallet that was connected when the
// read started is still the connected one.
func (s *saleSyncService) applyForSession(gen uint64, apply func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.sessionGen || !s.state.Connected {
		return
	}
	apply()
	s.publishLocked()
}

func (s *saleSyncService) refreshPrice(ctx context.Context) models.PriceQuote {
	quote := s.rpcClient.GetPriceQuote(ctx, oneUnit)
	s.metrics.read("price", nil)

	s.mu.Lock()
	s.state.Price = quote
	s.publishLocked()
	s.mu.Unlock()

	return quote
}
