package client

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/uber-go/tally"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	"github.com/uber/cmake-lsp/src/cmaked/internal/errors"
	"github.com/uber/cmake-lsp/src/cmaked/mapper"
	"github.com/uber/cmake-lsp/src/cmaked/model"
)

const _gaugeActiveConnections = "active_connections"

// Repository stores the connected editor clients.
type Repository interface {
	Get(context.Context, uuid.UUID) (*entity.Client, error)
	GetFromContext(ctx context.Context) (*entity.Client, error)
	Set(context.Context, *entity.Client) error
	Delete(ctx context.Context, id uuid.UUID) error
	ClientCount(ctx context.Context) (int, error)
}

type repository struct {
	mu       sync.Mutex
	memstore map[uuid.UUID]*model.Client
	stats    tally.Scope
}

// New returns a repository to a key-value Client data store.
func New(stats tally.Scope) Repository {
	return &repository{
		memstore: make(map[uuid.UUID]*model.Client),
		stats:    stats,
	}
}

// Get returns the Client associated with the given id.
func (r *repository) Get(ctx context.Context, id uuid.UUID) (*entity.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.memstore[id]
	if !ok {
		return nil, &errors.UUIDNotFoundError{UUID: id}
	}
	return mapper.ModelToClient(c)
}

// GetFromContext returns the Client whose UUID is carried by ctx.
func (r *repository) GetFromContext(ctx context.Context) (*entity.Client, error) {
	id, err := mapper.ContextToClientUUID(ctx)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Set stores the Client under its UUID, replacing any previous value.
func (r *repository) Set(ctx context.Context, c *entity.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c == nil {
		return errors.New("can't save nil client")
	}
	r.memstore[c.UUID] = mapper.ClientToModel(c)
	r.stats.Gauge(_gaugeActiveConnections).Update(float64(len(r.memstore)))
	return nil
}

// Delete removes the Client associated with the given id.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.memstore, id)
	r.stats.Gauge(_gaugeActiveConnections).Update(float64(len(r.memstore)))
	return nil
}

// ClientCount returns the number of connected clients.
func (r *repository) ClientCount(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.memstore), nil
}
