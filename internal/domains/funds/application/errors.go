package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ports.ErrIdempotencyConflict) && !errors.Is(err, domain.ErrIdempotencyConflict) {
		return fmt.Errorf("%w: %w", domain.ErrIdempotencyConflict, err)
	}
	return err
}
