package driven

import (
	"context"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
)

// SocialSender delivers a rendered go-live message to one integration.
type SocialSender interface {
	Send(ctx context.Context, delivery model.SocialDelivery) error
}
