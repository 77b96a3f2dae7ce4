package attendance_test

import (
	"errors"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/frahmantamala/attendance-management/internal/attendance"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Payload", func() {
	It("keeps the variant through the tagged encoding", func() {
		raw, err := attendance.MarshalPayload(attendance.FingerprintPayload{Template: "AAEC", FingerIndex: 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring(`"method":"fingerprint"`))

		p, err := attendance.UnmarshalPayload(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(attendance.FingerprintPayload{Template: "AAEC", FingerIndex: 3}))
	})

	It("treats null as no payload", func() {
		p, err := attendance.UnmarshalPayload([]byte("null"))
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeNil())
	})

	It("rejects an unknown method tag", func() {
		_, err := attendance.UnmarshalPayload([]byte(`{"method":"retina","data":{}}`))
		Expect(errors.Is(err, internal.ErrInvalidMethod)).To(BeTrue())
	})

	Describe("Capture.Validate", func() {
		It("rejects a payload for another method", func() {
			c := attendance.Capture{Method: attendance.MethodFace, Payload: attendance.BarcodePayload{Code: "X"}}
			appErr, ok := internal.IsAppError(c.Validate())
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("accepts a capture without payload", func() {
			Expect(attendance.Capture{Method: attendance.MethodManual}.Validate()).To(Succeed())
		})
	})

	Describe("ParseMethod", func() {
		It("is case-insensitive", func() {
			m, err := attendance.ParseMethod(" Face ")
			Expect(err).NotTo(HaveOccurred())
			Expect(m).To(Equal(attendance.MethodFace))
		})

		It("rejects anything else", func() {
			_, err := attendance.ParseMethod("pin")
			Expect(err).To(MatchError(internal.ErrInvalidMethod))
		})
	})
})
