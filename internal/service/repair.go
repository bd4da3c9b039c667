package service

import (
	"context"

	"github.com/vendora/storefront-api/internal/model"
)

// RepairPublisher queues a reference-repair task when the secondary write of
// a dual-write (order/address document plus the owner's reference array)
// fails after the primary write committed. The worker package provides the
// RabbitMQ-backed implementation.
type RepairPublisher interface {
	PublishRepair(ctx context.Context, msg model.RepairMessage) error
}
