package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultFollowUpHour is the local hour follow-ups go out
const DefaultFollowUpHour = 9

const sendTimeout = 30 * time.Second

// ErrSchedulerClosed is returned by Schedule after Close
var ErrSchedulerClosed = errors.New("follow-up scheduler closed")

type stopper interface {
	Stop() bool
}

// NextDeliveryTime returns hour:00 on the calendar day after now, in now's location
func NextDeliveryTime(now time.Time, hour int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, hour, 0, 0, 0, now.Location())
}

// FollowUpScheduler sends one delayed email per accepted application.
// Timers live in memory only; pending emails are lost on restart.
type FollowUpScheduler struct {
	mailer Mailer
	hour   int
	log    logrus.FieldLogger

	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper

	mu     sync.Mutex
	nextID uint64
	timers map[uint64]stopper
	closed bool
	sends  sync.WaitGroup
}

// NewFollowUpScheduler creates a scheduler sending through mailer at hour local time
func NewFollowUpScheduler(mailer Mailer, hour int, log logrus.FieldLogger) *FollowUpScheduler {
	return &FollowUpScheduler{
		mailer: mailer,
		hour:   hour,
		log:    log,
		now:    time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		timers: make(map[uint64]stopper),
	}
}

// Schedule arranges the follow-up for email and returns when it will be sent.
// Repeated calls for the same address schedule repeated emails.
func (s *FollowUpScheduler) Schedule(email, name string) (time.Time, error) {
	msg, err := FollowUpMessage(email, name)
	if err != nil {
		return time.Time{}, err
	}

	now := s.now()
	at := NextDeliveryTime(now, s.hour)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return time.Time{}, ErrSchedulerClosed
	}

	s.nextID++
	id := s.nextID
	s.timers[id] = s.afterFunc(at.Sub(now), func() { s.fire(id, msg) })

	s.log.WithFields(logrus.Fields{"to": email, "send_at": at.Format(time.RFC3339)}).Info("Follow-up email scheduled")
	return at, nil
}

func (s *FollowUpScheduler) fire(id uint64, msg Message) {
	s.mu.Lock()
	if _, ok := s.timers[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.sends.Add(1)
	s.mu.Unlock()
	defer s.sends.Done()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	log := s.log.WithField("to", msg.To)
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.WithError(err).Warn("Failed to send follow-up email")
		return
	}
	log.Info("Follow-up email sent")
}

// Pending returns the number of follow-ups not yet sent
func (s *FollowUpScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close cancels pending follow-ups, waits for in-flight sends and returns
// how many were dropped
func (s *FollowUpScheduler) Close() int {
	s.mu.Lock()
	s.closed = true
	dropped := 0
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
		dropped++
	}
	s.mu.Unlock()

	s.sends.Wait()
	if dropped > 0 {
		s.log.WithField("dropped", dropped).Warn("Pending follow-up emails discarded on shutdown")
	}
	return dropped
}
