package postgres

import (
	"context"
	"errors"

	employeeDatamodel "github.com/frahmantamala/attendance-management/internal/core/datamodel/employee"
	"github.com/frahmantamala/attendance-management/internal/identity"
	"gorm.io/gorm"
)

type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) identity.RepositoryAPI {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) FindBarcode(ctx context.Context, code string, includeInactive bool) (*employeeDatamodel.Barcode, error) {
	var barcode employeeDatamodel.Barcode
	q := r.db.WithContext(ctx).Where("code = ?", code)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.First(&barcode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &barcode, nil
}

func (r *IdentityRepository) FindLinkByUserID(ctx context.Context, userID int64) (*employeeDatamodel.UserLink, error) {
	var link employeeDatamodel.UserLink
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// FindLinkByEmployeeID returns the earliest link when several users share an employee.
func (r *IdentityRepository) FindLinkByEmployeeID(ctx context.Context, employeeID int64) (*employeeDatamodel.UserLink, error) {
	var link employeeDatamodel.UserLink
	err := r.db.WithContext(ctx).Where("employee_id = ?", employeeID).Order("id ASC").First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (r *IdentityRepository) GetEmployee(ctx context.Context, id int64) (*employeeDatamodel.Employee, error) {
	var employee employeeDatamodel.Employee
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&employee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &employee, nil
}
