package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saravananbs/genchargephase2/internal/logger"
	"github.com/saravananbs/genchargephase2/internal/metrics"
)

const (
	queueKey  = "notifications"
	failedKey = "notifications:failed"

	maxTries = 3
)

const (
	EventTransactionSuccess = "transaction_success"
	EventTransactionFailed  = "transaction_failed"
	EventAutopayCharged     = "autopay_charged"
	EventAutopayFailed      = "autopay_failed"
	EventReferralReward     = "referral_reward"
)

// Event is one user-facing notification. It is queued in Redis and
// delivered asynchronously so request handlers never wait on a
// delivery channel.
type Event struct {
	Type        string    `json:"type"`
	UserID      int       `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	Name        string    `json:"name,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	ServiceType string    `json:"service_type,omitempty"`
	AmountPaise int64     `json:"amount_paise,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Tries       int       `json:"tries"`
	Created     time.Time `json:"created"`
}

// Queue is the producer side of the notification pipeline.
type Queue interface {
	Enqueue(ctx context.Context, e Event) error
}

type Service struct {
	redis      *redis.Client
	sink       Sink
	retryDelay time.Duration
}

func New(rdb *redis.Client, sink Sink) *Service {
	if sink == nil {
		sink = LogSink{}
	}
	return &Service{
		redis:      rdb,
		sink:       sink,
		retryDelay: 5 * time.Second,
	}
}

func (s *Service) Enqueue(ctx context.Context, e Event) error {
	e.Tries = 0
	if e.Created.IsZero() {
		e.Created = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		logger.Errorf("Failed to marshal notification: %v", err)
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, data).Err(); err != nil {
		logger.Errorf("Failed to queue %s notification for user %d: %v", e.Type, e.UserID, err)
		metrics.RecordNotification(e.Type, "dropped")
		return err
	}

	metrics.RecordNotification(e.Type, "queued")
	logger.Infof("Notification queued: %s for user %d", e.Type, e.UserID)
	return nil
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("Notification service started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Notification service stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var e Event
	if err := json.Unmarshal([]byte(result[1]), &e); err != nil {
		logger.Errorf("Bad notification data: %v", err)
		return
	}

	e.Tries++
	logger.Infof("Delivering %s notification to user %d (attempt %d)", e.Type, e.UserID, e.Tries)
	if err := s.sink.Deliver(ctx, e); err != nil {
		logger.Errorf("Failed to deliver %s notification to user %d: %v", e.Type, e.UserID, err)

		if e.Tries < maxTries {
			time.Sleep(s.retryDelay)
			data, _ := json.Marshal(e)
			s.redis.LPush(context.Background(), queueKey, data)
			logger.Infof("Retrying notification for user %d (attempt %d)", e.UserID, e.Tries+1)
		} else {
			logger.Errorf("Notification for user %d failed after %d attempts", e.UserID, maxTries)
			s.saveFailed(e, err)
		}
		return
	}

	metrics.RecordNotification(e.Type, "delivered")
}

func (s *Service) saveFailed(e Event, err error) {
	failed := map[string]interface{}{
		"event": e,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedKey, data)
	metrics.RecordNotification(e.Type, "failed")
	logger.Errorf("Notification moved to failed queue: user %d", e.UserID)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	metrics.NotificationQueueLength.Set(float64(length))
	return length
}
