package app

import (
	"context"
	"fmt"
	"time"

	"daily-challenge-service/internal/domain"
	"go.uber.org/zap"
)

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	Day     string `json:"date"`
	Scanned int    `json:"scanned"`
	Expired int    `json:"expired"`
	Settled int    `json:"settled"`
	Failed  int    `json:"failed"`
}

// Sweep runs the time guard over every pending attempt of day (today when empty) and retries
// unfinished settlements. It reuses the same guard as on-demand access, so an attempt closed
// by the sweep is indistinguishable from one closed lazily.
func (s *ChallengeService) Sweep(ctx context.Context, day string) (SweepReport, error) {
	if day == "" {
		day = s.Today()
	} else {
		parsed, err := s.calendar.ParseDay(day)
		if err != nil {
			return SweepReport{}, err
		}
		day = parsed
	}
	report := SweepReport{Day: day}

	pending, err := s.attempts.ListPending(ctx, day)
	if err != nil {
		return report, fmt.Errorf("list pending attempts: %w", err)
	}

	challenges := make(map[string]domain.Challenge)
	for _, attempt := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++

		challenge, ok := challenges[attempt.ChallengeID]
		if !ok {
			challenge, err = s.catalog.GetChallenge(ctx, attempt.ChallengeID)
			if err != nil {
				report.Failed++
				s.log.Warn("sweep: load challenge", zap.String("attempt", attempt.Key().String()), zap.Error(err))
				continue
			}
			challenges[attempt.ChallengeID] = challenge
		}

		updated, err := s.guard(ctx, attempt, challenge)
		if err != nil {
			report.Failed++
			s.log.Warn("sweep: guard attempt", zap.String("attempt", attempt.Key().String()), zap.Error(err))
			continue
		}
		if !attempt.Completed && updated.Completed {
			report.Expired++
		}
		if attempt.SettledAt == nil && updated.SettledAt != nil {
			report.Settled++
		}
	}
	s.log.Info("sweep finished",
		zap.String("day", report.Day),
		zap.Int("scanned", report.Scanned),
		zap.Int("expired", report.Expired),
		zap.Int("settled", report.Settled),
		zap.Int("failed", report.Failed))
	return report, nil
}

// SweepRecent sweeps the previous day and then today. A win whose settlement failed just
// before midnight is no longer reachable through today's attempt key, so the previous day
// stays in every scheduled pass.
func (s *ChallengeService) SweepRecent(ctx context.Context) ([]SweepReport, error) {
	now := s.now().In(s.calendar.Location())
	days := []string{s.calendar.Day(now.AddDate(0, 0, -1)), s.calendar.Day(now)}
	reports := make([]SweepReport, 0, len(days))
	for _, day := range days {
		report, err := s.Sweep(ctx, day)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// RunSweeper sweeps yesterday's and today's attempts every interval until ctx is done.
func (s *ChallengeService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, ""); err != nil && ctx.Err() == nil {
				s.log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}
