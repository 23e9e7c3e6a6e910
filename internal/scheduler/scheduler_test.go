package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/internal/domain/types"
	"github.com/okian/engageboard/internal/scheduler"
	"github.com/okian/engageboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type submission struct {
	kind      model.CommandKind
	requestID string
	source    string
}

type fakeSubmitter struct {
	mu   sync.Mutex
	subs []submission
	err  error
}

func (f *fakeSubmitter) Submit(_ context.Context, kind model.CommandKind, requestID, source string) (types.CommandStatus, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, submission{kind: kind, requestID: requestID, source: source})
	return types.CommandStatus{}, false, f.err
}

func TestScheduler(t *testing.T) {
	Convey("Given a scheduler in a named timezone", t, func() {
		s, err := scheduler.New("Asia/Kolkata", scheduler.WithLogger(logger.Nop()))
		So(err, ShouldBeNil)

		Convey("When a daily job is added", func() {
			So(s.AddJob("daily", "0 9 * * *", func(context.Context) error { return nil }), ShouldBeNil)
			s.Start()
			defer s.Stop()

			Convey("Then its next run is at 09:00 local time", func() {
				jobs := s.Jobs()
				So(len(jobs), ShouldEqual, 1)
				next := jobs[0].Next.In(mustLoad("Asia/Kolkata"))
				So(next.Hour(), ShouldEqual, 9)
				So(next.Minute(), ShouldEqual, 0)
			})

			Convey("And the same name cannot be added twice", func() {
				So(s.AddJob("daily", "0 10 * * *", nil), ShouldNotBeNil)
			})
		})

		Convey("When the schedule is malformed", func() {
			err := s.AddJob("bad", "every day", func(context.Context) error { return nil })
			So(err, ShouldNotBeNil)
		})

		Convey("When running a job by name", func() {
			ran := false
			So(s.AddJob("manual", "@daily", func(context.Context) error { ran = true; return nil }), ShouldBeNil)
			So(s.RunNow(context.Background(), "manual"), ShouldBeNil)
			So(ran, ShouldBeTrue)

			Convey("Then removed jobs are unknown", func() {
				s.RemoveJob("manual")
				So(errors.Is(s.RunNow(context.Background(), "manual"), scheduler.ErrUnknownJob), ShouldBeTrue)
				So(s.Jobs(), ShouldBeEmpty)
			})
		})
	})

	Convey("Given an invalid timezone", t, func() {
		_, err := scheduler.New("Mars/Olympus")
		So(err, ShouldNotBeNil)
	})

	Convey("Given no options at all", t, func() {
		var s *scheduler.Scheduler
		var err error
		So(func() { s, err = scheduler.New("") }, ShouldNotPanic)
		So(err, ShouldBeNil)

		Convey("When a job runs on demand", func() {
			So(s.AddJob("noop", "@hourly", func(context.Context) error { return errors.New("ignored") }), ShouldBeNil)
			So(func() { _ = s.RunNow(context.Background(), "noop") }, ShouldNotPanic)
		})
	})
}

func TestSubmitJob(t *testing.T) {
	Convey("Given a submit job with a fixed clock", t, func() {
		sub := &fakeSubmitter{}
		at := time.Date(2026, 10, 18, 9, 0, 30, 0, time.UTC)
		job := scheduler.SubmitJob(sub, model.CommandRunCycle, func() time.Time { return at })

		Convey("When it fires twice in the same minute", func() {
			So(job(context.Background()), ShouldBeNil)
			So(job(context.Background()), ShouldBeNil)

			Convey("Then both submissions carry the same request id", func() {
				So(len(sub.subs), ShouldEqual, 2)
				So(sub.subs[0].requestID, ShouldEqual, "scheduled-run_cycle-20261018T0900")
				So(sub.subs[1].requestID, ShouldEqual, sub.subs[0].requestID)
				So(sub.subs[0].source, ShouldEqual, "scheduler")
			})
		})

		Convey("When submission fails", func() {
			sub.err = errors.New("queue full")
			So(job(context.Background()), ShouldNotBeNil)
		})
	})
}

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}
