package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex    = "/"
	RouteLogin    = "/login"
	RouteLogout   = "/logout"
	RouteRegister = "/register"

	// Student pages
	RouteStudentHome     = "/student"
	RouteStudentProgress = "/student/progress"

	// Admin pages
	RouteAdminHome         = "/admin"
	RouteAdminInterns      = "/admin/interns"
	RouteAdminInternDetail = "/admin/interns/{internID}"
	RouteAdminPastInterns  = "/admin/past-interns"
	RouteAdminProjects     = "/admin/projects"
	RouteAdminAttendance   = "/admin/attendance"

	// Operational
	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"
)
