package nav

// Dashboard route constants
const (
	// Public routes
	RouteHome   = "/"
	RouteLogin  = "/login"
	RouteVerify = "/verify"

	// Dashboard shell, shared by every signed in user
	RouteDashboard = "/dashboard"

	// Role areas
	RouteAdminDashboard  = "/dashboard/admin"
	RouteBrokerDashboard = "/dashboard/broker"
	RouteFarmerDashboard = "/dashboard/farmer"

	// Landing route for users without a recognised role
	RouteFallback = RouteFarmerDashboard
)

// Sub section shared by every submenu. Its route is the section root.
const SubAll = "all"

var publicRoutes = map[string]bool{
	RouteHome:   true,
	RouteLogin:  true,
	RouteVerify: true,
}
