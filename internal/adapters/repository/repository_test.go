package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/engageboard/internal/adapters/repository"
	"github.com/okian/engageboard/internal/domain/model"
)

func snapshotAt(t time.Time, handles ...string) model.Snapshot {
	entries := make([]model.LeaderboardEntry, len(handles))
	for i, h := range handles {
		entries[i] = model.LeaderboardEntry{Rank: i + 1, Handle: h, Score: float64(len(handles) - i)}
	}
	snap, err := model.NewSnapshot(entries, t)
	So(err, ShouldBeNil)
	return snap
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	Convey("Given an empty memory store", t, func() {
		s := repository.NewMemory(repository.WithHistoryLimit(2))

		Convey("When reading the current leaderboard", func() {
			_, err := s.Current(ctx)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When snapshots are stored", func() {
			for i := 0; i < 3; i++ {
				snap := snapshotAt(base.Add(time.Duration(i)*time.Hour), "a", "b")
				So(s.PutCurrent(ctx, snap), ShouldBeNil)
				So(s.AppendHistory(ctx, snap, base.Add(time.Duration(i)*time.Hour).Format("15")), ShouldBeNil)
			}

			Convey("Then current is the latest and history is capped newest first", func() {
				cur, err := s.Current(ctx)
				So(err, ShouldBeNil)
				So(cur.CapturedAt(), ShouldEqual, base.Add(2*time.Hour))

				hist, err := s.History(ctx, 10)
				So(err, ShouldBeNil)
				So(len(hist), ShouldEqual, 2)
				So(hist[0].Key, ShouldEqual, "11")
				So(hist[1].Key, ShouldEqual, "10")
			})

			Convey("And an existing key is never overwritten", func() {
				err := s.AppendHistory(ctx, snapshotAt(base, "z"), "11")
				So(errors.Is(err, repository.ErrDuplicateKey), ShouldBeTrue)
			})
		})

		Convey("When writes are failing", func() {
			s.FailWrites(errors.New("disk full"))
			So(s.PutCurrent(ctx, snapshotAt(base, "a")), ShouldNotBeNil)
			So(s.Record(ctx, "k", model.DistributionBundle{ID: "x"}), ShouldNotBeNil)
		})

		Convey("When bundles are recorded", func() {
			So(s.Record(ctx, "k1", model.DistributionBundle{ID: "1", CreatedAt: base}), ShouldBeNil)
			So(s.Record(ctx, "k2", model.DistributionBundle{ID: "2", CreatedAt: base.Add(time.Minute)}), ShouldBeNil)

			Convey("Then they are listed newest first", func() {
				got, err := s.Bundles(ctx, 1)
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So(got[0].ID, ShouldEqual, "2")
			})

			Convey("And a repeated id is rejected", func() {
				So(errors.Is(s.Record(ctx, "k3", model.DistributionBundle{ID: "1"}), repository.ErrDuplicateKey), ShouldBeTrue)
			})
		})

		Convey("When the limit is not positive", func() {
			_, err := s.History(ctx, 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
			_, err = s.Bundles(ctx, -1)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})
	})
}

func TestDocument(t *testing.T) {
	Convey("Given a snapshot", t, func() {
		at := time.Date(2026, 10, 18, 9, 0, 0, 123, time.UTC)
		snap := snapshotAt(at, "alice", "bob")

		Convey("When encoded", func() {
			raw, err := repository.EncodeSnapshot(snap)
			So(err, ShouldBeNil)

			Convey("Then it carries the leaderboard metadata", func() {
				So(string(raw), ShouldContainSubstring, `"total_participants":2`)
				So(string(raw), ShouldContainSubstring, `"last_updated":"2026-10-18T09:00:00.000000123Z"`)
			})

			Convey("And decoding restores entries and capture time", func() {
				back, err := repository.DecodeSnapshot(raw)
				So(err, ShouldBeNil)
				So(back.Entries(), ShouldResemble, snap.Entries())
				So(back.CapturedAt().Equal(at), ShouldBeTrue)
			})
		})

		Convey("When a stored document breaks the ranking invariants", func() {
			_, err := repository.DecodeSnapshot([]byte(`{"leaderboard":[{"rank":2}],"metadata":{}}`))
			So(errors.Is(err, model.ErrInvalidSnapshot), ShouldBeTrue)
		})
	})
}
