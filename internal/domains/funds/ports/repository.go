package ports

import (
	"context"

	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/projection"
)

// ErrNotFound is returned by repositories for unknown funds.
var ErrNotFound = domain.ErrFundNotFound

type Repository interface {
	Save(ctx context.Context, fund *domain.Fund) (*projection.Projection[*domain.Fund], error)
	Get(ctx context.Context, fund address.Address) (*projection.Projection[*domain.Fund], error)
	List(ctx context.Context) ([]*projection.Projection[*domain.Fund], error)
}

// Transactor runs fn as one unit of work. Everything fn does through the
// repository, custody and recorder commits together or not at all.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
