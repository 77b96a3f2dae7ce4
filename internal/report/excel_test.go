package report_test

import (
	"bytes"
	"context"
	"time"

	"github.com/frahmantamala/attendance-management/internal/report"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"
)

var _ = Describe("RenderRangeXLSX", func() {
	It("writes a header and one row per employee", func() {
		service := report.NewService(fixture(), nil, report.Options{
			Location: time.UTC,
			Now:      func() time.Time { return *at("2024-03-05", "10:00") },
		}, quietLogger())
		r, err := service.RangeReport(context.Background(), "2024-03-04", "2024-03-05")
		Expect(err).NotTo(HaveOccurred())

		data, err := report.RenderRangeXLSX(r)
		Expect(err).NotTo(HaveOccurred())

		f, err := excelize.OpenReader(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		rows, err := f.GetRows("Attendance")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1 + len(r.Rows)))
		Expect(rows[0][:6]).To(Equal([]string{"Employee Code", "Name", "Department", "2024-03-04 IN", "2024-03-04 OUT", "2024-03-04 HOURS"}))
		Expect(rows[0][len(rows[0])-1]).To(Equal("Total Hours"))

		var ana []string
		var citra []string
		for _, row := range rows[1:] {
			switch row[0] {
			case "E001":
				ana = row
			case "E003":
				citra = row
			}
		}
		Expect(ana).NotTo(BeNil())
		Expect(ana[3:6]).To(Equal([]string{"08:50", "17:20", "8.5"}))
		Expect(citra[3]).To(Equal("ABSENT"))
	})
})
