package identity_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	employeeDatamodel "github.com/frahmantamala/attendance-management/internal/core/datamodel/employee"
	"github.com/frahmantamala/attendance-management/internal/identity"
	"github.com/frahmantamala/attendance-management/internal/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Identity Handler", func() {
	var (
		handler  *identity.Handler
		mockRepo *MockRepository
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		mockRepo = NewMockRepository()
		mockRepo.employees[7] = &employeeDatamodel.Employee{ID: 7, EmployeeCode: "EMP-007", FullName: "Dewi Lestari"}
		mockRepo.barcodes["BC-7"] = &employeeDatamodel.Barcode{ID: 1, Code: "BC-7", EmployeeID: 7, IsActive: true}

		handler = identity.NewHandler(&transport.BaseHandler{Logger: logger}, identity.NewService(mockRepo, logger))
	})

	It("should return the lookup in the envelope", func() {
		req := httptest.NewRequest(http.MethodGet, "/public/barcode-check?code=BC-7", nil)
		w := httptest.NewRecorder()

		handler.CheckBarcode(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var body struct {
			Success bool                   `json:"success"`
			Data    identity.BarcodeLookup `json:"data"`
		}
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body.Success).To(BeTrue())
		Expect(body.Data.EmployeeCode).To(Equal("EMP-007"))
		Expect(body.Data.Active).To(BeTrue())
		Expect(body.Data.Linked).To(BeFalse())
	})

	It("should return 404 for unknown codes", func() {
		req := httptest.NewRequest(http.MethodGet, "/public/barcode-check?code=missing", nil)
		w := httptest.NewRecorder()

		handler.CheckBarcode(w, req)

		Expect(w.Code).To(Equal(http.StatusNotFound))
		var body map[string]interface{}
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body["success"]).To(BeFalse())
		Expect(body["error"].(map[string]interface{})["code"]).To(Equal("BARCODE_NOT_FOUND"))
	})

	It("should return 400 when the code is missing", func() {
		req := httptest.NewRequest(http.MethodGet, "/public/barcode-check", nil)
		w := httptest.NewRecorder()

		handler.CheckBarcode(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
