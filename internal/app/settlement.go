package app

import (
	"context"
	"fmt"

	"daily-challenge-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var settlementNamespace = uuid.MustParse("6f1c7a52-3d0e-5b8e-9a41-2c7d9e0b4f13")

// SettlementKey is the idempotency key for crediting an attempt's reward. It is derived from
// the attempt key so every retry of the same settlement presents the same key.
func SettlementKey(key domain.AttemptKey) uuid.UUID {
	return uuid.NewSHA1(settlementNamespace, []byte(key.String()))
}

// settle credits the reward and records it on the attempt's daily ranking. Both writes are
// keyed, so running settle again after a partial failure cannot double-credit.
func (s *ChallengeService) settle(ctx context.Context, attempt domain.Attempt, challenge domain.Challenge) (domain.Attempt, error) {
	if !attempt.NeedsSettlement() {
		return attempt, nil
	}
	key := SettlementKey(attempt.Key())
	log := s.log.With(
		zap.String("attempt", attempt.Key().String()),
		zap.String("settlement_key", key.String()),
		zap.String("reward", challenge.Reward.String()))

	credited, err := s.ledger.Credit(ctx, attempt.UserID, challenge.Reward, key)
	if err != nil {
		s.metrics.Settlement("credit_failed")
		log.Error("reward credit failed, attempt is won without balance credit; manual reconciliation required", zap.Error(err))
		return attempt, fmt.Errorf("%w: credit balance: %w", domain.ErrSettlementFailed, err)
	}
	ranked, err := s.ranking.Record(ctx, attempt.Day, attempt.UserID, challenge.Reward, key)
	if err != nil {
		s.metrics.Settlement("ranking_failed")
		log.Error("daily ranking update failed after balance credit; manual reconciliation required", zap.Error(err))
		return attempt, fmt.Errorf("%w: record ranking: %w", domain.ErrSettlementFailed, err)
	}
	if credited {
		s.metrics.Settlement("credited")
	} else {
		s.metrics.Settlement("duplicate")
	}

	settled := attempt.Clone()
	now := s.now()
	settled.SettledAt = &now
	updated, err := s.attempts.Update(ctx, settled)
	if err != nil {
		// The keyed writes above already happened; a later access or sweep records settledAt.
		log.Warn("reward settled but settledAt not recorded", zap.Error(err))
		return attempt, nil
	}
	log.Info("reward settled", zap.Bool("credited", credited), zap.Bool("ranked", ranked))
	return updated, nil
}
