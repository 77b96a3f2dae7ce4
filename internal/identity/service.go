package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/attendance-management/internal"
	employeeDatamodel "github.com/frahmantamala/attendance-management/internal/core/datamodel/employee"
)

// RepositoryAPI reads the externally owned reference tables. Every finder
// returns (nil, nil) when the row does not exist.
type RepositoryAPI interface {
	FindBarcode(ctx context.Context, code string, includeInactive bool) (*employeeDatamodel.Barcode, error)
	FindLinkByUserID(ctx context.Context, userID int64) (*employeeDatamodel.UserLink, error)
	FindLinkByEmployeeID(ctx context.Context, employeeID int64) (*employeeDatamodel.UserLink, error)
	GetEmployee(ctx context.Context, id int64) (*employeeDatamodel.Employee, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// ResolveUser maps an authenticated user to an Identity. The employee link
// is optional: a missing link or a failed lookup both yield an identity
// without EmployeeID.
func (s *Service) ResolveUser(ctx context.Context, userID int64) (Identity, error) {
	if userID <= 0 {
		return Identity{}, internal.ErrInvalidToken
	}

	id := Identity{UserID: userID}
	link, err := s.repo.FindLinkByUserID(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to look up employee link, continuing without it", "user_id", userID, "error", err)
		return id, nil
	}
	if link != nil {
		employeeID := link.EmployeeID
		id.EmployeeID = &employeeID
		id.AccessLevel = link.AccessLevel
	}
	return id, nil
}

// ResolveBarcode maps an active barcode to the linked user. Unlike
// ResolveUser it fails closed: an unlinked employee cannot act through a
// barcode.
func (s *Service) ResolveBarcode(ctx context.Context, code string) (Identity, error) {
	if appErr := requireCode(code); appErr != nil {
		return Identity{}, appErr
	}

	barcode, err := s.repo.FindBarcode(ctx, code, false)
	if err != nil {
		s.logger.Error("failed to find barcode", "error", err)
		return Identity{}, internal.NewInternalError("failed to resolve barcode", err)
	}
	if barcode == nil {
		return Identity{}, internal.ErrBarcodeNotFound
	}

	link, err := s.repo.FindLinkByEmployeeID(ctx, barcode.EmployeeID)
	if err != nil {
		s.logger.Error("failed to find user link for barcode", "employee_id", barcode.EmployeeID, "error", err)
		return Identity{}, internal.NewInternalError("failed to resolve barcode", err)
	}
	if link == nil {
		s.logger.Info("barcode scanned for unlinked employee", "employee_id", barcode.EmployeeID)
		return Identity{}, internal.ErrIdentityNotLinked
	}

	employeeID := barcode.EmployeeID
	return Identity{
		UserID:      link.UserID,
		EmployeeID:  &employeeID,
		AccessLevel: link.AccessLevel,
	}, nil
}

// CheckBarcode reports what a code belongs to without resolving it for
// attendance. Inactive barcodes are included.
func (s *Service) CheckBarcode(ctx context.Context, code string) (*BarcodeLookup, error) {
	if appErr := requireCode(code); appErr != nil {
		return nil, appErr
	}

	barcode, err := s.repo.FindBarcode(ctx, code, true)
	if err != nil {
		s.logger.Error("failed to find barcode", "error", err)
		return nil, internal.NewInternalError("failed to check barcode", err)
	}
	if barcode == nil {
		return nil, internal.ErrBarcodeNotFound
	}

	lookup := &BarcodeLookup{
		Code:       barcode.Code,
		Active:     barcode.IsActive,
		EmployeeID: barcode.EmployeeID,
	}

	employee, err := s.repo.GetEmployee(ctx, barcode.EmployeeID)
	if err != nil {
		return nil, internal.NewInternalError("failed to check barcode", fmt.Errorf("get employee %d: %w", barcode.EmployeeID, err))
	}
	if employee != nil {
		lookup.EmployeeCode = employee.EmployeeCode
		lookup.EmployeeName = employee.FullName
	}

	link, err := s.repo.FindLinkByEmployeeID(ctx, barcode.EmployeeID)
	if err != nil {
		return nil, internal.NewInternalError("failed to check barcode", fmt.Errorf("find link %d: %w", barcode.EmployeeID, err))
	}
	if link != nil {
		userID := link.UserID
		lookup.Linked = true
		lookup.UserID = &userID
	}

	return lookup, nil
}

// requireCode rejects blank codes. Codes are opaque, so the lookup uses
// the value exactly as scanned.
func requireCode(code string) *internal.AppError {
	if strings.TrimSpace(code) == "" {
		return internal.NewValidationFieldError("code", "code is required", internal.ErrCodeInvalidBarcode)
	}
	return nil
}
