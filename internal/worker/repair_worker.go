package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/vendora/storefront-api/internal/model"
	"github.com/vendora/storefront-api/internal/repository"
)

const (
	repairQueueName = "ref_repairs"
	dlxExchange     = "ref_repairs.dlx"
	dlqQueueName    = "ref_repairs.dlq"
	idempotencyTTL  = 24 * time.Hour
)

// RepairWorker re-applies failed secondary writes: appends or removals of
// order/address references on the owner's user document. The primary entity
// already committed by the time a message lands here, so every repair is a
// plain $addToSet/$pull re-issue.
type RepairWorker struct {
	channel     *amqp.Channel
	userRepo    repository.UserRepository
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

func NewRepairWorker(ch *amqp.Channel, userRepo repository.UserRepository, redisClient *redis.Client, log *slog.Logger) *RepairWorker {
	return &RepairWorker{
		channel:     ch,
		userRepo:    userRepo,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

// SetupRabbitMQ declares the repair queue with its DLX/DLQ topology.
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, repairQueueName, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(repairQueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": repairQueueName,
	}); err != nil {
		return fmt.Errorf("declare repair queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

// Publisher is the service-facing side of the repair queue.
type Publisher struct {
	channel *amqp.Channel
}

func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{channel: ch}
}

func (p *Publisher) PublishRepair(ctx context.Context, msg model.RepairMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal repair message: %w", err)
	}
	err = p.channel.PublishWithContext(ctx, "", repairQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("publish repair message: %w", err)
	}
	return nil
}

func (w *RepairWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(repairQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("reference repair worker started")
	return nil
}

func (w *RepairWorker) Stop() { close(w.done) }

func (w *RepairWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var repair model.RepairMessage
	if err := json.Unmarshal(msg.Body, &repair); err != nil {
		w.log.Error("unmarshal repair message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("repair_id", repair.ID, "user_id", repair.UserID.Hex(),
		"field", repair.Field, "op", repair.Op)

	idempotencyKey := "repair_done:" + repair.ID
	exists, err := w.redisClient.Exists(ctx, idempotencyKey).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("repair already applied, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.applyRepair(ctx, repair); err != nil {
		log.Error("apply repair failed", "error", err)
		_ = msg.Nack(false, false) // to DLQ
		return
	}

	if err := w.redisClient.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("repair applied")
}

func (w *RepairWorker) applyRepair(ctx context.Context, repair model.RepairMessage) error {
	field := repository.RefField(repair.Field)
	switch field {
	case repository.RefOrders, repository.RefAddresses:
	default:
		return fmt.Errorf("unknown ref field %q", repair.Field)
	}

	switch repair.Op {
	case "add":
		return w.userRepo.PushRef(ctx, repair.UserID, field, repair.Ref)
	case "remove":
		return w.userRepo.PullRef(ctx, repair.UserID, field, repair.Ref)
	default:
		return fmt.Errorf("unknown repair op %q", repair.Op)
	}
}
