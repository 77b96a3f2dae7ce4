package report_test

import (
	"context"
	"time"

	"github.com/frahmantamala/attendance-management/internal/report"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Warmer", func() {
	var (
		cache   *MemoryCache
		service *report.Service
	)

	BeforeEach(func() {
		cache = NewMemoryCache()
		service = report.NewService(fixture(), cache, report.Options{
			Location: time.UTC,
			Now:      func() time.Time { return *at("2024-03-05", "00:05") },
		}, quietLogger())
	})

	It("caches yesterday's summary", func() {
		w := report.NewWarmer(service, "", quietLogger())
		Expect(w.WarmYesterday(context.Background())).To(Succeed())
		Expect(cache.data).To(HaveKey("report:daily-summary:2024-03-04"))
		Expect(cache.ttls["report:daily-summary:2024-03-04"]).To(Equal(report.DefaultCacheTTL))
	})

	It("rejects an invalid schedule", func() {
		w := report.NewWarmer(service, "not a schedule", quietLogger())
		Expect(w.Start()).To(HaveOccurred())
	})

	It("starts and stops on a valid schedule", func() {
		w := report.NewWarmer(service, "@every 1h", quietLogger())
		Expect(w.Start()).To(Succeed())
		w.Stop()
	})
})
