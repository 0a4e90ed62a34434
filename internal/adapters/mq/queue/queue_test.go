package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/pitchelo/internal/adapters/mq/queue"
	"github.com/okian/pitchelo/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEnqueueDequeue(t *testing.T) {
	Convey("Given an empty queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))

		Convey("Enqueued tasks come back in order", func() {
			So(q.Enqueue(ctx, queue.Task{GameID: 1}), ShouldBeTrue)
			So(q.Enqueue(ctx, queue.Task{GameID: 2}), ShouldBeTrue)
			So(q.Len(ctx), ShouldEqual, 2)

			out := q.Dequeue(ctx)
			So((<-out).GameID, ShouldEqual, model.GameID(1))
			So((<-out).GameID, ShouldEqual, model.GameID(2))
		})

		Convey("A full queue rejects without blocking", func() {
			for i := 1; i <= 4; i++ {
				So(q.Enqueue(ctx, queue.Task{GameID: model.GameID(i)}), ShouldBeTrue)
			}
			So(q.Enqueue(ctx, queue.Task{GameID: 5}), ShouldBeFalse)
		})
	})
}

func TestClose(t *testing.T) {
	Convey("Given a queue with buffered tasks", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		So(q.Enqueue(ctx, queue.Task{GameID: 1}), ShouldBeTrue)

		So(q.Close(), ShouldBeNil)

		Convey("Enqueue fails after close", func() {
			So(q.IsClosed(), ShouldBeTrue)
			So(q.Enqueue(ctx, queue.Task{GameID: 2}), ShouldBeFalse)
		})

		Convey("Buffered tasks still drain, then the channel closes", func() {
			out := q.Dequeue(ctx)

			select {
			case task, ok := <-out:
				So(ok, ShouldBeTrue)
				So(task.GameID, ShouldEqual, model.GameID(1))
			case <-time.After(time.Second):
				So("timed out", ShouldBeEmpty)
			}

			select {
			case _, ok := <-out:
				So(ok, ShouldBeFalse)
			case <-time.After(time.Second):
				So("timed out", ShouldBeEmpty)
			}
		})

		Convey("Closing twice is a no-op", func() {
			So(q.Close(), ShouldBeNil)
		})
	})
}
