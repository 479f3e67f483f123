package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Sign in & Sessions
	RouteRegister     = "/auth/register"
	RouteLogin        = "/auth/login"
	RouteGoogle       = "/auth/google"
	RouteGoogleURL    = "/auth/google/url"
	RouteRefresh      = "/auth/refresh"
	RouteLogout       = "/auth/logout"
	RouteLogoutAll    = "/auth/logout-all"
	RouteMe           = "/auth/me"
	RouteSwitchTenant = "/auth/switch-tenant"
	RouteProfile      = "/auth/profile"

	// Auth Routes - Password Management
	RouteChangePassword = "/auth/change-password"
	RouteForgotPassword = "/auth/forgot-password"
	RouteResetPassword  = "/auth/reset-password"

	// Auth Routes - Invitations
	RouteAcceptInvitation = "/auth/accept-invitation"

	// Tenant Routes
	RouteTenantMembers     = "/tenants/members"
	RouteTenantMember      = "/tenants/members/{userId}"
	RouteTenantInvite      = "/tenants/invite"
	RouteTransferOwnership = "/tenants/transfer-ownership"
	RouteLeaveTenant       = "/tenants/leave"

	RouteHealth = "/healthz"
)
