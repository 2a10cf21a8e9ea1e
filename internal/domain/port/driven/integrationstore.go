package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
)

// ErrIntegrationNotFound indicates the requested social integration does not exist.
var ErrIntegrationNotFound = errors.New("social integration not found")

// IntegrationStore defines the driven port for social integration persistence.
// Update and Delete return ErrIntegrationNotFound if the id does not exist.
type IntegrationStore interface {
	Create(ctx context.Context, integration model.SocialIntegration) (model.SocialIntegration, error)
	Update(ctx context.Context, integration model.SocialIntegration) (model.SocialIntegration, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*model.SocialIntegration, error)
	ListAll(ctx context.Context) ([]model.SocialIntegration, error)
	ListEnabled(ctx context.Context) ([]model.SocialIntegration, error)
}
