// Package poller samples every READY button on a fixed interval and
// publishes state changes and read faults on the bus.
package poller

import (
	"context"
	"time"

	"devicecore-go/bus"
	"devicecore-go/device"
	"devicecore-go/drivers/button"
	"devicecore-go/errcode"
	"devicecore-go/x/logx"
	"devicecore-go/x/timex"
)

const DefaultInterval = 500 * time.Millisecond

// Event is the retained payload of button/<name>/state.
type Event struct {
	Device string
	ID     uint32
	State  uint8
	TS     int64 // unix ms
}

// Fault is the payload of button/<name>/error.
type Fault struct {
	Device string
	Code   errcode.Code
	Err    string
	TS     int64
}

func StateTopic(name string) bus.Topic { return bus.T("button", name, "state") }
func ErrorTopic(name string) bus.Topic { return bus.T("button", name, "error") }

type Service struct {
	Registry *device.Registry
	Conn     *bus.Connection
	Interval time.Duration
	Count    int // rounds to run; 0 runs until ctx is done
	Log      logx.Logger

	last map[string]uint8
}

func (s *Service) logger() logx.Logger {
	if s.Log == nil {
		s.Log = logx.L().Named("poller")
	}
	return s.Log
}

// Poll samples each READY button once. Failed devices are skipped; read
// failures are logged and published, and the button is retried next round.
func (s *Service) Poll(ctx context.Context) (ok, failed int) {
	if s.last == nil {
		s.last = make(map[string]uint8)
	}
	log := s.logger()
	for _, b := range button.All(s.Registry) {
		if !b.IsReady() {
			continue
		}
		v, err := button.Get(ctx, b)
		if err != nil {
			failed++
			log.Warnw("read failed, retrying next round", "device", b.Name(), "code", errcode.Of(err), "err", err)
			s.publish(&bus.Message{Topic: ErrorTopic(b.Name()), Payload: Fault{
				Device: b.Name(), Code: errcode.Of(err), Err: err.Error(), TS: timex.NowMs(),
			}})
			continue
		}
		ok++
		if prev, seen := s.last[b.Name()]; seen && prev == v {
			continue
		}
		s.last[b.Name()] = v
		log.Infow("button state", "device", b.Name(), "id", b.Config().ID, "state", v)
		s.publish(&bus.Message{Topic: StateTopic(b.Name()), Retained: true, Payload: Event{
			Device: b.Name(), ID: b.Config().ID, State: v, TS: timex.NowMs(),
		}})
	}
	return ok, failed
}

func (s *Service) publish(m *bus.Message) {
	if s.Conn != nil {
		s.Conn.Publish(m)
	}
}

// Run polls until Count rounds complete or ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	iv := s.Interval
	if iv <= 0 {
		iv = DefaultInterval
	}
	s.logger().Infow("polling buttons", "interval", iv.String(), "buttons", len(button.All(s.Registry)))

	tick := time.NewTicker(iv)
	defer tick.Stop()
	for round := 1; ; round++ {
		s.Poll(ctx)
		if s.Count > 0 && round >= s.Count {
			return nil
		}
		select {
		case <-ctx.Done():
			s.logger().Infow("poller stopping")
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// Start runs the service in its own goroutine.
func (s *Service) Start(ctx context.Context) {
	go func() { _ = s.Run(ctx) }()
}
