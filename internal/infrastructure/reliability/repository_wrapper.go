package reliability

import (
	"context"

	"parlor/internal/core/domain"
	"parlor/internal/core/ports"
	"parlor/pkg/circuitbreaker"
	"parlor/pkg/retry"

	"go.uber.org/zap"
)

// RoomRepositoryWrapper guards a room repository with retries and a
// circuit breaker. Meant for network-backed stores; wrapping the
// in-memory one would only add overhead.
type RoomRepositoryWrapper struct {
	repo   ports.RoomRepository
	logger *zap.SugaredLogger

	retryConfig    retry.Config
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewRoomRepositoryWrapper(
	repo ports.RoomRepository,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
) *RoomRepositoryWrapper {
	wrapper := &RoomRepositoryWrapper{
		repo:           repo,
		logger:         logger,
		retryConfig:    retryConfig,
		circuitBreaker: circuitbreaker.New(cbConfig),
	}

	wrapper.circuitBreaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("room repository circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return wrapper
}

// execute runs one repository call through the breaker, retrying
// transient failures. Domain errors are terminal and pass through
// without counting against the breaker.
func (w *RoomRepositoryWrapper) execute(ctx context.Context, op string, fn func() error) error {
	var domainErr error
	err := retry.Retry(ctx, w.retryConfig, func() error {
		return w.circuitBreaker.Execute(ctx, func() error {
			err := fn()
			if isDomainError(err) {
				domainErr = err
				return nil
			}
			return err
		})
	})
	if domainErr != nil {
		return domainErr
	}
	if err != nil {
		w.logger.Errorw("room repository operation failed", "operation", op, "error", err)
		return err
	}
	return nil
}

func isDomainError(err error) bool {
	switch err {
	case domain.ErrRoomNotFound, domain.ErrRoomExists, domain.ErrRoomClosed,
		domain.ErrRoomFull, domain.ErrPeerNotFound, domain.ErrNotMember:
		return true
	}
	return false
}

func (w *RoomRepositoryWrapper) Create(ctx context.Context, room *domain.Room) error {
	return w.execute(ctx, "create", func() error {
		return w.repo.Create(ctx, room)
	})
}

func (w *RoomRepositoryWrapper) Get(ctx context.Context, name string) (*domain.Room, error) {
	var room *domain.Room
	err := w.execute(ctx, "get", func() error {
		var err error
		room, err = w.repo.Get(ctx, name)
		return err
	})
	return room, err
}

func (w *RoomRepositoryWrapper) Update(ctx context.Context, room *domain.Room) error {
	return w.execute(ctx, "update", func() error {
		return w.repo.Update(ctx, room)
	})
}

func (w *RoomRepositoryWrapper) Delete(ctx context.Context, name string) error {
	return w.execute(ctx, "delete", func() error {
		return w.repo.Delete(ctx, name)
	})
}

func (w *RoomRepositoryWrapper) List(ctx context.Context) ([]*domain.Room, error) {
	var rooms []*domain.Room
	err := w.execute(ctx, "list", func() error {
		var err error
		rooms, err = w.repo.List(ctx)
		return err
	})
	return rooms, err
}
