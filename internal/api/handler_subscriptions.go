package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"luggage-locker-backend/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint          string  `json:"endpoint" binding:"required"`
	P256DH            string  `json:"p256dh" binding:"required"`
	Auth              string  `json:"auth" binding:"required"`
	SubscribedLockers []int64 `json:"subscribed_lockers"`
}

// pushDB returns the SQL connection backing push subscriptions, or writes a
// 503 when the store has none.
func (h *Handler) pushDB(c *gin.Context) (*gorm.DB, bool) {
	if h.store == nil || h.store.DB() == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "push subscriptions need a database"})
		return nil, false
	}
	return h.store.DB().WithContext(c.Request.Context()), true
}

// PutSubscription creates or replaces a subscription and the lockers it
// wants alerts for.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	db, ok := h.pushDB(c)
	if !ok {
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&subscription).Error; err != nil {
			return err
		}

		var lockers []model.Locker
		if len(req.SubscribedLockers) > 0 {
			if err := tx.Find(&lockers, req.SubscribedLockers).Error; err != nil {
				return err
			}
		}

		return tx.Model(&subscription).Association("Lockers").Replace(&lockers)
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription removes a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	db, ok := h.pushDB(c)
	if !ok {
		return
	}

	subscription := model.PushSubscription{Endpoint: req.Endpoint}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&subscription).Association("Lockers").Clear(); err != nil {
			return err
		}
		return tx.Delete(&subscription).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam returns the undecoded value of key. Push endpoints are URLs
// and must be compared exactly as the browser sent them.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription returns the lockers a subscription is watching.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	db, ok := h.pushDB(c)
	if !ok {
		return
	}

	var subscription model.PushSubscription
	if err := db.Preload("Lockers").First(&subscription, "endpoint = ?", raw).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	lockerIDs := make([]int64, len(subscription.Lockers))
	for i, locker := range subscription.Lockers {
		lockerIDs[i] = locker.ID
	}

	c.JSON(http.StatusOK, gin.H{"subscribed_lockers": lockerIDs})
}

// GetVAPIDPublicKey returns the key browsers need to create a subscription.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vapid keys are not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
