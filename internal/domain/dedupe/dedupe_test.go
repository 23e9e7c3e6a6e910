package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/engageboard/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When an id is new", func() {
			seen := d.SeenAndRecord(ctx, "post-1")

			Convey("Then it is recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, int64(1))
			})
		})

		Convey("When the same id arrives twice", func() {
			d.SeenAndRecord(ctx, "post-1")
			seen := d.SeenAndRecord(ctx, "post-1")

			Convey("Then the second call reports it as seen", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, int64(1))
			})
		})

		Convey("When an id is unrecorded", func() {
			d.SeenAndRecord(ctx, "cmd-1")
			d.Unrecord(ctx, "cmd-1")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, int64(0))
				So(d.SeenAndRecord(ctx, "cmd-1"), ShouldBeFalse)
			})
		})

		Convey("When unrecording an unknown id", func() {
			d.Unrecord(ctx, "missing")
			So(d.Size(), ShouldEqual, int64(0))
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))

		Convey("When more ids than the bound are recorded", func() {
			d.SeenAndRecord(ctx, "a")
			d.SeenAndRecord(ctx, "b")
			d.SeenAndRecord(ctx, "c")

			Convey("Then the oldest is evicted first", func() {
				So(d.Size(), ShouldEqual, int64(2))
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

		Convey("When recording concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					d.SeenAndRecord(ctx, fmt.Sprint(i%10))
				}(i)
			}
			wg.Wait()

			Convey("Then every distinct id is kept once", func() {
				So(d.Size(), ShouldEqual, int64(10))
			})
		})
	})
}
