package cmd

import (
	"fmt"
	"log"

	attendanceDatamodel "github.com/frahmantamala/attendance-management/internal/core/datamodel/attendance"
	employeeDatamodel "github.com/frahmantamala/attendance-management/internal/core/datamodel/employee"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var clearData bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed departments, employees, barcodes and user links for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadRuntime()
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlxDB.Close()

		if clearData {
			if err := clearSeedData(db); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			fmt.Println("Cleared attendance and reference data")
		}

		if err := db.Transaction(seedReferenceData); err != nil {
			log.Fatalf("failed to seed: %v", err)
		}

		fmt.Println("Reference data seeded successfully")
		fmt.Println("Mint a token with: attendance-management token --user-id 1 --permissions admin")
	},
}

type seedEmployee struct {
	Code       string
	Name       string
	Department string
	Barcode    string
	UserID     int64
	Access     string
}

// Employee EMP-005 has a badge but no user link, for exercising the
// not-linked path from the kiosk.
var seedEmployees = []seedEmployee{
	{Code: "EMP-001", Name: "Fadhil Rahman", Department: "Engineering", Barcode: "BC-EMP-001", UserID: 1, Access: "admin"},
	{Code: "EMP-002", Name: "Padil Santoso", Department: "Engineering", Barcode: "BC-EMP-002", UserID: 2, Access: "employee"},
	{Code: "EMP-003", Name: "Sari Wulandari", Department: "Operations", Barcode: "BC-EMP-003", UserID: 3, Access: "supervisor"},
	{Code: "EMP-004", Name: "Budi Hartono", Department: "Finance", Barcode: "BC-EMP-004", UserID: 4, Access: "employee"},
	{Code: "EMP-005", Name: "Dewi Lestari", Department: "Operations", Barcode: "BC-EMP-005"},
}

func seedReferenceData(tx *gorm.DB) error {
	departments := make(map[string]int64)
	for _, name := range []string{"Engineering", "Operations", "Finance"} {
		dept := employeeDatamodel.Department{Name: name, IsActive: true}
		if err := tx.Where("name = ?", name).FirstOrCreate(&dept).Error; err != nil {
			return fmt.Errorf("seed department %s: %w", name, err)
		}
		departments[name] = dept.ID
	}

	for _, e := range seedEmployees {
		deptID := departments[e.Department]
		emp := employeeDatamodel.Employee{
			EmployeeCode: e.Code,
			FullName:     e.Name,
			DepartmentID: &deptID,
			IsActive:     true,
		}
		if err := tx.Where("employee_code = ?", e.Code).FirstOrCreate(&emp).Error; err != nil {
			return fmt.Errorf("seed employee %s: %w", e.Code, err)
		}

		barcode := employeeDatamodel.Barcode{Code: e.Barcode, EmployeeID: emp.ID, IsActive: true}
		if err := tx.Where("code = ?", e.Barcode).FirstOrCreate(&barcode).Error; err != nil {
			return fmt.Errorf("seed barcode %s: %w", e.Barcode, err)
		}

		if e.UserID == 0 {
			fmt.Printf("Seeded employee %s (unlinked)\n", e.Code)
			continue
		}
		link := employeeDatamodel.UserLink{UserID: e.UserID, EmployeeID: emp.ID, AccessLevel: e.Access}
		if err := tx.Where("user_id = ?", e.UserID).FirstOrCreate(&link).Error; err != nil {
			return fmt.Errorf("seed user link %d: %w", e.UserID, err)
		}
		fmt.Printf("Seeded employee %s linked to user %d\n", e.Code, e.UserID)
	}

	return nil
}

func clearSeedData(db *gorm.DB) error {
	models := []interface{}{
		&attendanceDatamodel.Cursor{},
		&attendanceDatamodel.Device{},
		&attendanceDatamodel.Event{},
		&attendanceDatamodel.Record{},
		&employeeDatamodel.UserLink{},
		&employeeDatamodel.Barcode{},
		&employeeDatamodel.Employee{},
		&employeeDatamodel.Department{},
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, m := range models {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")
}
