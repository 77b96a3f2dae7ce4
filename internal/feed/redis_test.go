package feed_test

import (
	"context"
	"os"
	"time"

	"github.com/frahmantamala/attendance-management/internal/attendance"
	"github.com/frahmantamala/attendance-management/internal/feed"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
)

var _ = Describe("RedisBroker", func() {
	var (
		client *redis.Client
		hub    *feed.Hub
	)

	BeforeEach(func() {
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			Skip("REDIS_ADDR not set")
		}
		client = redis.NewClient(&redis.Options{Addr: addr})
		hub = feed.NewHub(8, quietLogger())
	})

	AfterEach(func() {
		if client != nil {
			client.Close()
		}
		if hub != nil {
			hub.Close()
		}
	})

	It("relays published events to the local hub", func() {
		channel := "attendance:test:" + uuid.NewString()
		broker := feed.NewRedisBroker(client, channel, hub, quietLogger())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go broker.Run(ctx)

		sub, err := hub.Subscribe(feed.Filter{})
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() int64 {
			n, _ := client.PubSubNumSub(ctx, channel).Result()
			return n[channel]
		}, 2*time.Second).Should(Equal(int64(1)))

		Expect(broker.Publish(ctx, newEvent(1, 7, nil))).To(Succeed())

		var got *attendance.Event
		Eventually(sub.Events(), 2*time.Second).Should(Receive(&got))
		Expect(got.ID).To(Equal("evt-1"))
		Expect(got.UserID).To(Equal(int64(7)))
	})

	It("marks the hub unavailable when redis cannot be reached", func() {
		bad := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
		defer bad.Close()
		broker := feed.NewRedisBroker(bad, "", hub, quietLogger())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go broker.Run(ctx)

		Eventually(hub.Available, 2*time.Second).Should(BeFalse())
	})
})
