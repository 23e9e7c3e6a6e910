package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/engageboard/internal/adapters/repository"
	"github.com/okian/engageboard/internal/adapters/repository/sqlite"
	"github.com/okian/engageboard/internal/domain/leaderboard"
	"github.com/okian/engageboard/internal/domain/model"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 11, 30, 45, 123456789, time.UTC)

	Convey("Given a fresh sqlite store", t, func() {
		dbPath := filepath.Join(t.TempDir(), "nested", "engage.db")
		s, err := sqlite.Open(ctx, dbPath)
		So(err, ShouldBeNil)
		defer s.Close()

		entries := []model.LeaderboardEntry{
			{Rank: 1, Handle: "alice", PostLink: "https://x.com/alice/status/1", Score: 10, WalletAddress: "0x1111111111111111111111111111111111111111"},
			{Rank: 2, Handle: "bob", PostLink: "https://x.com/bob/status/2", Score: 4.5},
		}
		snap, err := model.NewSnapshot(entries, at)
		So(err, ShouldBeNil)

		Convey("When nothing was stored", func() {
			_, err := s.Current(ctx)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When a snapshot is stored twice as current", func() {
			So(s.PutCurrent(ctx, snap), ShouldBeNil)
			later, _ := model.NewSnapshot(entries[:1], at.Add(time.Hour))
			So(s.PutCurrent(ctx, later), ShouldBeNil)

			Convey("Then the latest one wins", func() {
				cur, err := s.Current(ctx)
				So(err, ShouldBeNil)
				So(cur.ParticipantCount(), ShouldEqual, 1)
				So(cur.CapturedAt().Equal(at.Add(time.Hour)), ShouldBeTrue)
			})
		})

		Convey("When history is appended", func() {
			So(s.AppendHistory(ctx, snap, "2026-10-18T11-30-45-123456789Z"), ShouldBeNil)
			later, _ := model.NewSnapshot(entries, at.Add(time.Minute))
			So(s.AppendHistory(ctx, later, "2026-10-18T11-31-45-123456789Z"), ShouldBeNil)

			Convey("Then it is listed newest first with entries intact", func() {
				hist, err := s.History(ctx, 5)
				So(err, ShouldBeNil)
				So(len(hist), ShouldEqual, 2)
				So(hist[0].Key, ShouldEqual, "2026-10-18T11-31-45-123456789Z")
				So(hist[1].Snapshot.Entries(), ShouldResemble, entries)
			})

			Convey("And a duplicate key is rejected", func() {
				err := s.AppendHistory(ctx, snap, "2026-10-18T11-30-45-123456789Z")
				So(errors.Is(err, repository.ErrDuplicateKey), ShouldBeTrue)
			})
		})

		Convey("When bundles are recorded", func() {
			signed := model.SignedRecord{Signature: "0xsig", SignerAddress: "0xme", PayloadHash: "0xhash"}
			results := []model.TransferOutcome{
				model.Succeeded("0x1111111111111111111111111111111111111111", model.MustParseAmount("0.333333"), "0xtx"),
				model.Failed("0x2222222222222222222222222222222222222222", model.MustParseAmount("0.333333"), errors.New("reverted")),
			}
			first, err := model.NewDistributionBundle("b-1", signed, "", results, at)
			So(err, ShouldBeNil)
			second, err := model.NewDistributionBundle("b-2", signed, "0xanchor", results, at.Add(time.Second))
			So(err, ShouldBeNil)
			So(s.Record(ctx, leaderboard.HistoryKey(first.CreatedAt), first), ShouldBeNil)
			So(s.Record(ctx, leaderboard.HistoryKey(second.CreatedAt), second), ShouldBeNil)

			Convey("Then they read back newest first", func() {
				got, err := s.Bundles(ctx, 10)
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].ID, ShouldEqual, "b-2")
				So(got[0].AnchorTxHash, ShouldEqual, "0xanchor")
				So(got[1].Anchored(), ShouldBeFalse)
				So(got[1].Results[1].Status, ShouldEqual, model.TransferFailed)
				So(got[1].Results[0].Amount.String(), ShouldEqual, "0.333333")
			})

			Convey("And bundles are append-only", func() {
				err := s.Record(ctx, "again", first)
				So(errors.Is(err, repository.ErrDuplicateKey), ShouldBeTrue)
			})
		})

		Convey("When the store is reopened", func() {
			So(s.PutCurrent(ctx, snap), ShouldBeNil)
			So(s.Close(), ShouldBeNil)

			reopened, err := sqlite.Open(ctx, dbPath)
			So(err, ShouldBeNil)
			defer reopened.Close()

			cur, err := reopened.Current(ctx)
			So(err, ShouldBeNil)
			So(cur.Entries(), ShouldResemble, entries)
		})
	})
}
