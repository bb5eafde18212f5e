package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/conversation"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/observability"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

const (
	unreadCacheTTL        = 5 * time.Minute
	messageSendBufferSize = 32
	messagePingInterval   = 30 * time.Second
)

var (
	// ErrEmptyMessage indicates neither text nor attachment was provided.
	ErrEmptyMessage = apperror.Validation("message requires content or an attachment")
	// ErrMessageToSelf indicates a user tried to message themselves.
	ErrMessageToSelf = apperror.Validation("cannot send a message to yourself")
	// ErrMessageNotParticipant indicates the caller is not part of the message.
	ErrMessageNotParticipant = apperror.Forbidden("not a participant of this message")
)

// MessageConnectionOptions wraps metadata extracted during the HTTP upgrade.
type MessageConnectionOptions struct {
	UserID        uint
	Role          identity.Role
	CorrelationID string
	Context       context.Context
}

// MessageService handles direct messages and their live delivery.
type MessageService interface {
	Send(ctx context.Context, principal identity.Principal, req dto.MessageSendRequest, file *multipart.FileHeader) (dto.MessageResponse, error)
	Conversation(ctx context.Context, principal identity.Principal, otherID uint, limit int) ([]dto.MessageResponse, error)
	MarkRead(ctx context.Context, principal identity.Principal, id uint) error
	MarkConversationRead(ctx context.Context, principal identity.Principal, otherID uint) (int64, error)
	Delete(ctx context.Context, principal identity.Principal, id uint) error
	UnreadSenders(ctx context.Context, principal identity.Principal) ([]dto.UnreadSenderResponse, error)
	ServeConnection(conn *websocket.Conn, opts MessageConnectionOptions)
	Start(ctx context.Context)
}

type messageService struct {
	repo         repository.MessageRepository
	users        repository.UserRepository
	artifacts    ArtifactStore
	redis        *redis.Client
	redisChannel string
	unreadPrefix string
	nats         *nats.Conn
	natsSubject  string
	validator    *validator.Validate
	logger       zerolog.Logger
	tracer       trace.Tracer
	sanitizer    *bluemonday.Policy
	hub          *messageHub
	nodeID       string
}

// messageHub tracks live websocket clients per user.
type messageHub struct {
	mu      sync.RWMutex
	clients map[uint]map[*messageClient]struct{}
	log     zerolog.Logger
}

type messageClient struct {
	conn    *websocket.Conn
	send    chan dto.MessageResponse
	options MessageConnectionOptions
	service *messageService
	closed  chan struct{}
	once    sync.Once
}

type messageEvent struct {
	Source  string              `json:"source"`
	Message dto.MessageResponse `json:"message"`
	SentAt  time.Time           `json:"sent_at"`
}

// NewMessageService constructs the direct message service. Redis and NATS
// are optional.
func NewMessageService(
	repo repository.MessageRepository,
	users repository.UserRepository,
	artifacts ArtifactStore,
	redisClient *redis.Client,
	channelBase string,
	natsConn *nats.Conn,
	validate *validator.Validate,
	logger zerolog.Logger,
) MessageService {
	channel := ""
	unreadPrefix := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":messages"
		unreadPrefix = channelBase + ":messages:unread"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".messages"
	}

	return &messageService{
		repo:         repo,
		users:        users,
		artifacts:    artifacts,
		redis:        redisClient,
		redisChannel: channel,
		unreadPrefix: unreadPrefix,
		nats:         natsConn,
		natsSubject:  subject,
		validator:    validate,
		logger:       logger.With().Str("component", "message_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/sekolah-go-api/internal/service/message"),
		sanitizer:    bluemonday.StrictPolicy(),
		hub: &messageHub{
			clients: make(map[uint]map[*messageClient]struct{}),
			log:     logger.With().Str("component", "message_hub").Logger(),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *messageService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *messageService) Send(ctx context.Context, principal identity.Principal, req dto.MessageSendRequest, file *multipart.FileHeader) (dto.MessageResponse, error) {
	sender, err := authorize(principal, identity.CapSendMessages)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.MessageResponse{}, err
	}
	if req.RecipientID == sender.UserID {
		return dto.MessageResponse{}, ErrMessageToSelf
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(req.Content))
	if content == "" && file == nil {
		return dto.MessageResponse{}, ErrEmptyMessage
	}

	spanCtx, span := s.tracer.Start(ctx, "messages.send", trace.WithAttributes(
		attribute.Int64("message.sender_id", int64(sender.UserID)),
		attribute.Int64("message.recipient_id", int64(req.RecipientID)),
		attribute.Bool("message.attachment", file != nil),
	))
	defer span.End()

	recipient, err := s.users.GetByID(spanCtx, req.RecipientID)
	if err != nil {
		return dto.MessageResponse{}, translateRepoError(err, "recipient not found")
	}
	if !recipient.IsApproved() {
		return dto.MessageResponse{}, apperror.NotFound("recipient not found")
	}

	message := models.Message{
		SenderID:       sender.UserID,
		RecipientID:    recipient.ID,
		ConversationID: conversation.Key(sender.UserID, recipient.ID),
		Content:        content,
		FileKind:       models.MessageKindText,
	}

	if file != nil {
		artifact, err := s.artifacts.Store(spanCtx, file, PolicyMessageAttachment, uintPtr(sender.UserID))
		if err != nil {
			span.RecordError(err)
			return dto.MessageResponse{}, err
		}
		message.FileRef = artifact.Ref
		message.FileURL = artifact.URL
		message.FileKind = artifact.Kind
	}

	if err := s.repo.Create(spanCtx, &message); err != nil {
		discardArtifact(spanCtx, s.artifacts, s.logger, message.FileRef)
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	if stored, err := s.repo.GetByID(spanCtx, message.ID); err == nil {
		message = stored
	}

	response := dto.NewMessageResponse(message)
	s.invalidateUnread(spanCtx, recipient.ID)
	s.deliver(response)
	if err := s.publish(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to relay message to broker")
	}

	observability.MessagesSent().WithLabelValues(message.FileKind).Inc()
	return response, nil
}

// Conversation returns the messages between the caller and otherID, oldest first.
func (s *messageService) Conversation(ctx context.Context, principal identity.Principal, otherID uint, limit int) ([]dto.MessageResponse, error) {
	caller, err := authorize(principal, identity.CapSendMessages)
	if err != nil {
		return nil, err
	}
	if otherID == 0 {
		return nil, apperror.Validation("conversation partner is required")
	}

	messages, err := s.repo.ListByConversation(ctx, conversation.Key(caller.UserID, otherID), limit)
	if err != nil {
		return nil, err
	}
	return dto.NewMessageResponseSlice(messages), nil
}

func (s *messageService) MarkRead(ctx context.Context, principal identity.Principal, id uint) error {
	caller, err := authorize(principal, identity.CapSendMessages)
	if err != nil {
		return err
	}

	message, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return translateRepoError(err, "message not found")
	}
	if message.RecipientID != caller.UserID {
		return apperror.Forbidden("only the recipient can mark a message as read")
	}
	if message.Read {
		return nil
	}

	if err := s.repo.MarkRead(ctx, message.ID); err != nil {
		return err
	}
	s.invalidateUnread(ctx, caller.UserID)
	return nil
}

func (s *messageService) MarkConversationRead(ctx context.Context, principal identity.Principal, otherID uint) (int64, error) {
	caller, err := authorize(principal, identity.CapSendMessages)
	if err != nil {
		return 0, err
	}

	updated, err := s.repo.MarkConversationRead(ctx, conversation.Key(caller.UserID, otherID), caller.UserID)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		s.invalidateUnread(ctx, caller.UserID)
	}
	return updated, nil
}

func (s *messageService) Delete(ctx context.Context, principal identity.Principal, id uint) error {
	caller, err := authorize(principal, identity.CapSendMessages)
	if err != nil {
		return err
	}

	message, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return translateRepoError(err, "message not found")
	}
	if !conversation.Includes(message.ConversationID, caller.UserID) ||
		(message.SenderID != caller.UserID && message.RecipientID != caller.UserID) {
		return ErrMessageNotParticipant
	}

	if err := s.repo.Delete(ctx, message.ID); err != nil {
		return translateRepoError(err, "message not found")
	}

	discardArtifact(ctx, s.artifacts, s.logger, message.FileRef)
	if !message.Read {
		s.invalidateUnread(ctx, message.RecipientID)
	}
	return nil
}

// UnreadSenders lists who sent the caller unread messages, most first. The
// result is cached in redis when available.
func (s *messageService) UnreadSenders(ctx context.Context, principal identity.Principal) ([]dto.UnreadSenderResponse, error) {
	caller, err := authorize(principal, identity.CapSendMessages)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cachedUnread(ctx, caller.UserID); ok {
		return cached, nil
	}

	rows, err := s.repo.UnreadSenders(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	response := dto.NewUnreadSenderResponseSlice(rows)
	s.storeUnread(ctx, caller.UserID, response)
	return response, nil
}

func (s *messageService) ServeConnection(conn *websocket.Conn, opts MessageConnectionOptions) {
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	client := &messageClient{
		conn:    conn,
		send:    make(chan dto.MessageResponse, messageSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
	}

	s.hub.register(client)
	observability.MessageConnections().Inc()
	defer observability.MessageConnections().Dec()

	go client.writer()
	client.reader()
}

func (s *messageService) unreadKey(userID uint) string {
	return fmt.Sprintf("%s:%d", s.unreadPrefix, userID)
}

func (s *messageService) cachedUnread(ctx context.Context, userID uint) ([]dto.UnreadSenderResponse, bool) {
	if s.redis == nil || s.unreadPrefix == "" {
		return nil, false
	}

	raw, err := s.redis.Get(ctx, s.unreadKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read unread cache")
		}
		return nil, false
	}

	var cached []dto.UnreadSenderResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		s.logger.Warn().Err(err).Msg("invalid unread cache payload")
		return nil, false
	}
	return cached, true
}

func (s *messageService) storeUnread(ctx context.Context, userID uint, value []dto.UnreadSenderResponse) {
	if s.redis == nil || s.unreadPrefix == "" {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, s.unreadKey(userID), payload, unreadCacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache unread senders")
	}
}

func (s *messageService) invalidateUnread(ctx context.Context, userID uint) {
	if s.redis == nil || s.unreadPrefix == "" {
		return
	}
	if err := s.redis.Del(ctx, s.unreadKey(userID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate unread cache")
	}
}

// deliver pushes the message to live clients of both participants.
func (s *messageService) deliver(message dto.MessageResponse) {
	s.hub.broadcast(message.RecipientID, message)
	if message.SenderID != message.RecipientID {
		s.hub.broadcast(message.SenderID, message)
	}
}

func (s *messageService) publish(ctx context.Context, message dto.MessageResponse) error {
	if (s.redis == nil || s.redisChannel == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(messageEvent{
		Source:  s.nodeID,
		Message: message,
		SentAt:  time.Now().UTC(),
	})
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

func (s *messageService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("message redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *messageService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats messages subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain message nats subscription")
		}
	}()
}

func (s *messageService) handleEvent(data []byte) {
	var event messageEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid message event")
		return
	}
	if event.Source == s.nodeID {
		return
	}
	s.deliver(event.Message)
}

func (h *messageHub) register(client *messageClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.options.UserID
	if _, exists := h.clients[userID]; !exists {
		h.clients[userID] = make(map[*messageClient]struct{})
	}
	h.clients[userID][client] = struct{}{}
	h.log.Debug().Uint("user_id", userID).Msg("message client connected")
}

func (h *messageHub) unregister(client *messageClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.options.UserID
	if clients, ok := h.clients[userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, userID)
		}
	}
	h.log.Debug().Uint("user_id", userID).Msg("message client disconnected")
}

func (h *messageHub) broadcast(userID uint, message dto.MessageResponse) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.send <- message:
		default:
			h.log.Warn().Uint("user_id", userID).Msg("dropping message for slow client")
		}
	}
}

// reader accepts text messages sent over the socket.
func (c *messageClient) reader() {
	defer c.close()

	principal := identity.Principal{UserID: c.options.UserID, Role: c.options.Role}
	logger := c.service.logger.With().Str("correlation_id", c.options.CorrelationID).Logger()

	for {
		var payload dto.MessageSendRequest
		if err := c.conn.ReadJSON(&payload); err != nil {
			logger.Debug().Err(err).Msg("message read loop ended")
			return
		}

		if _, err := c.service.Send(c.options.Context, principal, payload, nil); err != nil {
			logger.Warn().Err(err).Msg("failed to process socket message")
		}

		select {
		case <-c.closed:
			return
		default:
		}
	}
}

func (c *messageClient) writer() {
	defer c.close()

	ticker := time.NewTicker(messagePingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.WriteJSON(message); err != nil {
				c.service.logger.Debug().Err(err).Msg("message write loop terminated")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("message ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *messageClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		_ = c.conn.Close()
	})
}
