package auth

const (
	PermissionAdmin           = "admin"
	PermissionAttendanceAdmin = "attendance_admin"
	PermissionReportsView     = "reports_view"
)

// ReportPermissions grant the admin reports and the unfiltered event feed.
var ReportPermissions = []string{PermissionAdmin, PermissionAttendanceAdmin, PermissionReportsView}

type PermissionChecker interface {
	CanViewReports(userPermissions []string) bool
	CanWatchAllEvents(userPermissions []string) bool
	HasAnyPermission(userPermissions []string, requiredPermissions []string) bool
	IsAdmin(userPermissions []string) bool
}

type DefaultPermissionChecker struct{}

func NewPermissionChecker() PermissionChecker {
	return &DefaultPermissionChecker{}
}

func (c *DefaultPermissionChecker) CanViewReports(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, ReportPermissions)
}

// CanWatchAllEvents allows subscribing to other users' attendance events.
func (c *DefaultPermissionChecker) CanWatchAllEvents(userPermissions []string) bool {
	return c.CanViewReports(userPermissions)
}

func (c *DefaultPermissionChecker) HasAnyPermission(userPermissions []string, requiredPermissions []string) bool {
	for _, userPerm := range userPermissions {
		for _, requiredPerm := range requiredPermissions {
			if userPerm == requiredPerm {
				return true
			}
		}
	}
	return false
}

func (c *DefaultPermissionChecker) IsAdmin(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermissionAdmin})
}
