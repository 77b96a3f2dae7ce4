package feed_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/frahmantamala/attendance-management/internal/attendance"
	"github.com/frahmantamala/attendance-management/internal/feed"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type MockEventLog struct {
	mu         sync.Mutex
	events     []*attendance.Event
	shouldFail bool
}

func (m *MockEventLog) Append(ev *attendance.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *MockEventLog) ListEventsAfter(_ context.Context, seq int64, limit int) ([]*attendance.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return nil, errors.New("log unreachable")
	}
	var out []*attendance.Event
	for _, ev := range m.events {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	// rows may become visible out of seq order; reads are always ordered
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockEventLog) LatestEventSeq(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return 0, errors.New("log unreachable")
	}
	if len(m.events) == 0 {
		return 0, nil
	}
	return m.events[len(m.events)-1].Seq, nil
}

type MockCursorStore struct {
	mu    sync.Mutex
	saved map[string]int64
}

func (m *MockCursorStore) Load(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[name], nil
}

func (m *MockCursorStore) Save(_ context.Context, name string, seq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[name] = seq
	return nil
}

type collector struct {
	mu      sync.Mutex
	got     []int64
	failSeq int64
}

func (c *collector) sink(_ context.Context, ev *attendance.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.Seq == c.failSeq {
		return errors.New("sink rejected")
	}
	c.got = append(c.got, ev.Seq)
	return nil
}

func (c *collector) seqs() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.got...)
}

var _ = Describe("LogPoller", func() {
	var (
		log *MockEventLog
		out *collector
		ctx context.Context
	)

	BeforeEach(func() {
		log = &MockEventLog{}
		out = &collector{}
		ctx = context.Background()
	})

	It("starts at the head of the log without a cursor", func() {
		log.Append(newEvent(1, 7, nil))
		log.Append(newEvent(2, 7, nil))

		p := feed.NewLogPoller(log, feed.Each(out.sink), feed.PollerOptions{BatchSize: 10}, quietLogger())
		Expect(p.Start(ctx)).To(Succeed())
		Expect(p.Position()).To(Equal(int64(2)))

		log.Append(newEvent(3, 7, nil))
		n, err := p.PollOnce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
		Expect(out.seqs()).To(Equal([]int64{3}))
	})

	It("resumes from a saved cursor and persists progress", func() {
		for i := int64(1); i <= 5; i++ {
			log.Append(newEvent(i, 7, nil))
		}
		cursor := &MockCursorStore{saved: map[string]int64{"relay": 2}}

		p := feed.NewLogPoller(log, feed.Each(out.sink), feed.PollerOptions{Name: "relay", BatchSize: 2, Cursor: cursor}, quietLogger())
		Expect(p.Start(ctx)).To(Succeed())

		n, err := p.PollOnce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))
		Expect(cursor.saved["relay"]).To(Equal(int64(4)))

		_, err = p.PollOnce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.seqs()).To(Equal([]int64{3, 4, 5}))
		Expect(cursor.saved["relay"]).To(Equal(int64(5)))
	})

	It("stops at a failing event and retries it on the next poll", func() {
		for i := int64(1); i <= 3; i++ {
			log.Append(newEvent(i, 7, nil))
		}
		out.failSeq = 2
		cursor := &MockCursorStore{saved: map[string]int64{}}

		p := feed.NewLogPoller(log, feed.Each(out.sink), feed.PollerOptions{Name: "relay", BatchSize: 10, Cursor: cursor}, quietLogger())
		Expect(p.Start(ctx)).To(Succeed())

		n, err := p.PollOnce(ctx)
		Expect(err).To(HaveOccurred())
		Expect(n).To(Equal(1))
		Expect(p.Position()).To(Equal(int64(1)))

		out.mu.Lock()
		out.failSeq = 0
		out.mu.Unlock()

		_, err = p.PollOnce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.seqs()).To(Equal([]int64{1, 2, 3}))
	})

	Describe("sequence gaps", func() {
		var (
			cursor *MockCursorStore
			now    time.Time
			p      *feed.LogPoller
		)

		BeforeEach(func() {
			cursor = &MockCursorStore{saved: map[string]int64{"relay": 9}}
			now = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
			p = feed.NewLogPoller(log, feed.Each(out.sink), feed.PollerOptions{
				Name:      "relay",
				BatchSize: 10,
				Cursor:    cursor,
				GapGrace:  10 * time.Second,
				Now:       func() time.Time { return now },
			}, quietLogger())
			Expect(p.Start(ctx)).To(Succeed())
		})

		It("waits for a lower seq that commits after a higher one", func() {
			log.Append(newEvent(11, 7, nil))
			n, err := p.PollOnce(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
			Expect(p.Position()).To(Equal(int64(9)))
			Expect(cursor.saved["relay"]).To(Equal(int64(9)))

			log.Append(newEvent(10, 8, nil))
			n, err = p.PollOnce(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(out.seqs()).To(Equal([]int64{10, 11}))
			Expect(cursor.saved["relay"]).To(Equal(int64(11)))
		})

		It("delivers up to a hole and stops there", func() {
			log.Append(newEvent(10, 7, nil))
			log.Append(newEvent(12, 7, nil))

			n, err := p.PollOnce(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(p.Position()).To(Equal(int64(10)))

			n, err = p.PollOnce(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
			Expect(out.seqs()).To(Equal([]int64{10}))
		})

		It("skips a hole that never fills once the grace period passes", func() {
			log.Append(newEvent(11, 7, nil))

			n, _ := p.PollOnce(ctx)
			Expect(n).To(BeZero())

			now = now.Add(5 * time.Second)
			n, _ = p.PollOnce(ctx)
			Expect(n).To(BeZero())

			now = now.Add(6 * time.Second)
			n, err := p.PollOnce(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(out.seqs()).To(Equal([]int64{11}))
			Expect(cursor.saved["relay"]).To(Equal(int64(11)))
		})
	})

	It("reports log health transitions", func() {
		var states []bool
		p := feed.NewLogPoller(log, feed.Each(out.sink), feed.PollerOptions{
			BatchSize: 10,
			OnHealth:  func(ok bool) { states = append(states, ok) },
		}, quietLogger())

		log.shouldFail = true
		_, err := p.PollOnce(ctx)
		Expect(err).To(HaveOccurred())

		log.shouldFail = false
		_, err = p.PollOnce(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(states).To(Equal([]bool{false, true}))
	})

	It("feeds the hub when running", func() {
		hub := feed.NewHub(8, quietLogger())
		defer hub.Close()
		sub, err := hub.Subscribe(feed.Filter{})
		Expect(err).NotTo(HaveOccurred())

		log.Append(newEvent(1, 7, nil))
		p := feed.NewLogPoller(log, feed.Each(hub.Deliver), feed.PollerOptions{Interval: 10 * time.Millisecond}, quietLogger())
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			p.Run(runCtx)
		}()

		Eventually(p.Position).Should(Equal(int64(1)))
		log.Append(newEvent(2, 7, nil))

		var got *attendance.Event
		Eventually(sub.Events(), time.Second).Should(Receive(&got))
		Expect(got.ID).To(Equal("evt-2"))
		Expect(sub.Events()).NotTo(Receive())

		cancel()
		Eventually(done).Should(BeClosed())
	})
})
