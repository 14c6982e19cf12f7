// Package monitor periodically looks for stored sessions that have run past
// their estimated stay and raises a single overdue alert for each.
package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"

	"luggage-locker-backend/config"
	"luggage-locker-backend/internal/events"
	"luggage-locker-backend/internal/model"
	"luggage-locker-backend/internal/notification"
	"luggage-locker-backend/internal/query"
	"luggage-locker-backend/internal/store"
)

// reminderTTL is how long a session stays marked as already reminded.
const reminderTTL = 7 * 24 * time.Hour

// Service runs the overdue sweep on a cron schedule.
type Service struct {
	cfg      config.MonitorConfig
	store    store.Store
	bus      *events.Bus
	sms      notification.SMSSender
	now      func() time.Time
	grace    time.Duration
	loc      *time.Location
	reminded *cache.Cache
}

// NewService creates the monitor. sms may be nil, in which case overdue
// sessions are only published and logged.
func NewService(cfg *config.Config, st store.Store, bus *events.Bus, sms notification.SMSSender) *Service {
	return &Service{
		cfg:      cfg.Monitor,
		store:    st,
		bus:      bus,
		sms:      sms,
		now:      time.Now,
		grace:    cfg.Facility.OverdueGrace,
		loc:      cfg.Facility.Location,
		reminded: cache.New(reminderTTL, time.Hour),
	}
}

// Run starts the sweep schedule and blocks until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Overdue monitor is disabled. Not starting.")
		return
	}
	log.Printf("Starting overdue monitor (%s)...", s.cfg.Schedule)

	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.SweepOnce(ctx) }); err != nil {
		log.Printf("Invalid monitor schedule %q: %v", s.cfg.Schedule, err)
		return
	}
	c.Start()

	s.SweepOnce(ctx)

	<-ctx.Done()
	log.Println("Overdue monitor shutting down.")
	<-c.Stop().Done()
}

// SweepOnce publishes an overdue event for every newly overdue session and
// returns how many it found.
func (s *Service) SweepOnce(ctx context.Context) int {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		log.Printf("Error listing sessions for overdue sweep: %v", err)
		return 0
	}

	now := s.now()
	found := 0
	for i := range sessions {
		session := sessions[i]
		if !query.IsOverdue(session, now, s.grace) {
			continue
		}
		// Add fails when the key exists, so each session is reminded once.
		if err := s.reminded.Add(session.ID, now, cache.DefaultExpiration); err != nil {
			continue
		}
		found++

		locker, err := s.store.GetLocker(ctx, session.LockerID)
		if err != nil {
			log.Printf("Error fetching locker %d for overdue session %s: %v", session.LockerID, session.TagNumber, err)
			locker = model.Locker{ID: session.LockerID}
		}

		log.Printf("Session %s in locker %s is overdue (checked in %s, estimated %gh)",
			session.TagNumber, locker.Number, session.CheckInAt.Format(time.RFC3339), session.EstimatedHours)
		s.bus.Publish(events.Event{
			Kind:    events.SessionOverdue,
			At:      now,
			Locker:  &locker,
			Session: &session,
		})

		if s.sms != nil && session.OwnerPhone != "" {
			if err := s.sms.SendSMS(ctx, session.OwnerPhone, s.reminderText(session, locker)); err != nil {
				log.Printf("Error sending overdue reminder for %s: %v", session.TagNumber, err)
			}
		}
	}
	return found
}

func (s *Service) reminderText(session model.Session, locker model.Locker) string {
	loc := s.loc
	if loc == nil {
		loc = time.UTC
	}
	due := session.CheckInAt.Add(time.Duration(session.EstimatedHours * float64(time.Hour))).In(loc)
	return fmt.Sprintf("Hello %s, your luggage %s in locker %s was due for pickup at %s. "+
		"Please collect it or contact the desk to extend your stay.",
		session.OwnerName, session.TagNumber, locker.Number, due.Format("02 Jan 15:04"))
}
