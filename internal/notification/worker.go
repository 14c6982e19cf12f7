package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"luggage-locker-backend/internal/events"
	"luggage-locker-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool pushes "locker available" alerts to the staff terminals that
// subscribed to a locker.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size*16),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case lockerID := <-wp.jobs:
			wp.sendNotificationsForLocker(ctx, lockerID)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a locker for notification. It never blocks the caller; when
// the queue is full the alert is dropped and logged.
func (wp *WorkerPool) Dispatch(lockerID int64) {
	select {
	case wp.jobs <- lockerID:
	default:
		log.Printf("Notification queue full, dropping alert for locker %d", lockerID)
	}
}

// HandleEvent dispatches an alert whenever a locker becomes available again.
func (wp *WorkerPool) HandleEvent(e events.Event) {
	if e.Locker == nil || e.Locker.Status != model.LockerAvailable {
		return
	}
	switch e.Kind {
	case events.SessionCheckedOut, events.LockerStatusChanged:
		wp.Dispatch(e.Locker.ID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

func (wp *WorkerPool) sendNotificationsForLocker(ctx context.Context, lockerID int64) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_locker_mapping slm ON slm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("slm.locker_id = ?", lockerID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for locker %d: %v", lockerID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for locker %d", len(subscriptions), lockerID)

	var locker model.Locker
	label := fmt.Sprintf("#%d", lockerID)
	if err := wp.db.WithContext(ctx).
		Select("number").
		First(&locker, lockerID).Error; err != nil {
		log.Printf("Error fetching locker %d: %v", lockerID, err)
	} else if locker.Number != "" {
		label = locker.Number
	}

	message := fmt.Sprintf("Locker %s is now available", label)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
