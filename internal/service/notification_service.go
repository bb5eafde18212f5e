package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/observability"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

const notificationBufferSize = 16

// NotificationService persists notifications and streams them to connected recipients.
type NotificationService interface {
	Deliver(ctx context.Context, notifications []models.Notification) int
	List(ctx context.Context, principal identity.Principal, limit, offset int) ([]dto.NotificationResponse, error)
	UnreadCount(ctx context.Context, principal identity.Principal) (int64, error)
	MarkRead(ctx context.Context, principal identity.Principal, id uint) (dto.NotificationResponse, error)
	Delete(ctx context.Context, principal identity.Principal, id uint) error
	DeleteAll(ctx context.Context, principal identity.Principal) (int64, error)
	Subscribe(recipientID uint) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo         repository.NotificationRepository
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	tracer       trace.Tracer
	broker       *notificationBroker
	nodeID       string
}

type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs a notification service. Redis and NATS
// are optional; when present they relay live notifications between nodes.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) NotificationService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:         repo,
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "notification_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/sekolah-go-api/internal/service/notification"),
		broker: &notificationBroker{
			subscribers: make(map[uint]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Deliver inserts the notifications in bulk and falls back to one insert per
// recipient when the bulk insert fails. It returns how many were stored;
// failures are logged and counted, never returned.
func (s *notificationService) Deliver(ctx context.Context, notifications []models.Notification) int {
	if len(notifications) == 0 {
		return 0
	}

	ctx, span := s.tracer.Start(ctx, "notifications.deliver", trace.WithAttributes(
		attribute.Int("notification.count", len(notifications)),
		attribute.String("notification.type", notifications[0].Type),
	))
	defer span.End()

	stored := notifications
	if err := s.repo.CreateBatch(ctx, notifications); err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Int("count", len(notifications)).Msg("bulk notification insert failed, retrying one by one")

		stored = make([]models.Notification, 0, len(notifications))
		for _, notification := range notifications {
			item := notification
			item.ID = 0
			if err := s.repo.Create(ctx, &item); err != nil {
				observability.NotificationsFailed().WithLabelValues(item.Type).Inc()
				s.logger.Warn().Err(err).Uint("recipient_id", item.RecipientID).Str("type", item.Type).Msg("failed to store notification")
				continue
			}
			stored = append(stored, item)
		}
	}

	for _, notification := range stored {
		response := dto.NewNotificationResponse(notification)
		observability.NotificationsDelivered().WithLabelValues(response.Type).Inc()
		s.broadcast(response)
		if err := s.publish(ctx, response); err != nil {
			s.logger.Warn().Err(err).Msg("failed to relay notification to broker")
		}
	}

	return len(stored)
}

func (s *notificationService) List(ctx context.Context, principal identity.Principal, limit, offset int) ([]dto.NotificationResponse, error) {
	recipient, err := authorize(principal, identity.CapReadNotifications)
	if err != nil {
		return nil, err
	}

	notifications, err := s.repo.ListByRecipient(ctx, recipient.UserID, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) UnreadCount(ctx context.Context, principal identity.Principal) (int64, error) {
	recipient, err := authorize(principal, identity.CapReadNotifications)
	if err != nil {
		return 0, err
	}
	return s.repo.CountUnread(ctx, recipient.UserID)
}

func (s *notificationService) MarkRead(ctx context.Context, principal identity.Principal, id uint) (dto.NotificationResponse, error) {
	recipient, err := authorize(principal, identity.CapReadNotifications)
	if err != nil {
		return dto.NotificationResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.Int64("notification.recipient_id", int64(recipient.UserID)),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, recipient.UserID)
	if err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, translateRepoError(err, "notification not found")
	}
	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) Delete(ctx context.Context, principal identity.Principal, id uint) error {
	recipient, err := authorize(principal, identity.CapReadNotifications)
	if err != nil {
		return err
	}
	return translateRepoError(s.repo.Delete(ctx, id, recipient.UserID), "notification not found")
}

func (s *notificationService) DeleteAll(ctx context.Context, principal identity.Principal) (int64, error) {
	recipient, err := authorize(principal, identity.CapReadNotifications)
	if err != nil {
		return 0, err
	}
	return s.repo.DeleteAll(ctx, recipient.UserID)
}

func (s *notificationService) Subscribe(recipientID uint) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(recipientID, channel)
	observability.SSEClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(recipientID, channel)
			observability.SSEClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (s *notificationService) broadcast(notification dto.NotificationResponse) {
	s.broker.broadcast(notification.RecipientID, notification)
}

func (s *notificationService) publish(ctx context.Context, notification dto.NotificationResponse) error {
	if (s.redis == nil || s.redisChannel == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	event := notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

// every node needs every event, so this is a plain subscription rather than a queue group
func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID || event.Notification.RecipientID == 0 {
		return
	}

	s.broadcast(event.Notification)
}

func (b *notificationBroker) subscribe(recipientID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[recipientID]; !exists {
		b.subscribers[recipientID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[recipientID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(recipientID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[recipientID]; ok {
		if _, present := subscribers[ch]; !present {
			return
		}
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, recipientID)
		}
	}
}

func (b *notificationBroker) broadcast(recipientID uint, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[recipientID] {
		select {
		case ch <- notification:
		default:
		}
	}
}
