package firestore

import (
	"context"
	"errors"

	"github.com/instrugate/api/internal/repositories"
	pfirestore "github.com/instrugate/api/internal/platform/firestore"
)

// HealthRepository answers readiness probes with a cheap read against a
// sentinel document. A missing document still proves the backend answers.
type HealthRepository struct {
	provider *pfirestore.Provider
}

// NewHealthRepository binds the probe to the shared provider.
func NewHealthRepository(provider *pfirestore.Provider) (*HealthRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is required")
	}
	return &HealthRepository{provider: provider}, nil
}

func (r *HealthRepository) Ping(ctx context.Context) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection("health").Doc("probe").Get(ctx)
	if err != nil {
		wrapped := pfirestore.WrapError("health.ping", err)
		if isNotFound(wrapped) {
			return nil
		}
		return wrapped
	}
	return nil
}

var _ repositories.HealthRepository = (*HealthRepository)(nil)
