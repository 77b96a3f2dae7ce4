package employee

import "time"

// Reference tables owned by the organisation modules. This service only
// reads them; the seeder writes them in development.

type Department struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;size:120;not null"`
	IsActive  bool      `gorm:"column:is_active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Department) TableName() string { return "departments" }

type Employee struct {
	ID           int64     `gorm:"primaryKey"`
	EmployeeCode string    `gorm:"column:employee_code;size:40;uniqueIndex;not null"`
	FullName     string    `gorm:"column:full_name;size:160"`
	DepartmentID *int64    `gorm:"column:department_id;index"`
	IsActive     bool      `gorm:"column:is_active;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Employee) TableName() string { return "employees" }

type Barcode struct {
	ID         int64     `gorm:"primaryKey"`
	Code       string    `gorm:"column:code;size:128;uniqueIndex;not null"`
	EmployeeID int64     `gorm:"column:employee_id;not null;index"`
	IsActive   bool      `gorm:"column:is_active;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Barcode) TableName() string { return "employee_barcodes" }

type UserLink struct {
	ID          int64     `gorm:"primaryKey"`
	UserID      int64     `gorm:"column:user_id;not null;uniqueIndex"`
	EmployeeID  int64     `gorm:"column:employee_id;not null;index"`
	AccessLevel string    `gorm:"column:access_level;size:40;not null;default:employee"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (UserLink) TableName() string { return "user_employee_links" }
