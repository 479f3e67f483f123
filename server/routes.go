package server

import (
	"github.com/jrsteele09/go-tenant-auth/guards"
	"github.com/jrsteele09/go-tenant-auth/tenants"
)

var (
	signedIn       = []guards.Guard{guards.Authenticated}
	inTenant       = []guards.Guard{guards.Authenticated, guards.RequireTenant}
	tenantManagers = []guards.Guard{guards.Authenticated, guards.RequireTenant, guards.RequireRole(tenants.RoleOwner, tenants.RoleAdmin)}
	tenantOwner    = []guards.Guard{guards.Authenticated, guards.RequireTenant, guards.RequireRole(tenants.RoleOwner)}
)

func (s *Server) initRoutes() {
	s.router.Use(s.StdMiddleware()...)

	// Public
	s.router.Post(RouteRegister, s.RegisterHandler())
	s.router.Post(RouteLogin, s.LoginHandler())
	s.router.Post(RouteGoogle, s.GoogleHandler())
	s.router.Get(RouteGoogleURL, s.GoogleURLHandler())
	s.router.Post(RouteRefresh, s.RefreshHandler())
	s.router.Post(RouteForgotPassword, s.ForgotPasswordHandler())
	s.router.Post(RouteResetPassword, s.ResetPasswordHandler())
	s.router.Post(RouteAcceptInvitation, s.AcceptInvitationHandler())
	s.router.Get(RouteHealth, s.HealthHandler())

	// Signed in
	s.router.Post(RouteLogout, ChainMiddleware(s.LogoutHandler(), s.RequireAuth(signedIn...)))
	s.router.Post(RouteLogoutAll, ChainMiddleware(s.LogoutAllHandler(), s.RequireAuth(signedIn...)))
	s.router.Get(RouteMe, ChainMiddleware(s.MeHandler(), s.RequireAuth(signedIn...)))
	s.router.Post(RouteSwitchTenant, ChainMiddleware(s.SwitchTenantHandler(), s.RequireAuth(signedIn...)))
	s.router.Post(RouteChangePassword, ChainMiddleware(s.ChangePasswordHandler(), s.RequireAuth(signedIn...)))
	s.router.Patch(RouteProfile, ChainMiddleware(s.UpdateProfileHandler(), s.RequireAuth(signedIn...)))

	// Tenant administration
	s.router.Get(RouteTenantMembers, ChainMiddleware(s.ListMembersHandler(), s.RequireAuth(tenantManagers...)))
	s.router.Post(RouteTenantInvite, ChainMiddleware(s.InviteHandler(), s.RequireAuth(tenantManagers...)))
	s.router.Put(RouteTenantMember, ChainMiddleware(s.UpdateMemberHandler(), s.RequireAuth(tenantManagers...)))
	s.router.Delete(RouteTenantMember, ChainMiddleware(s.RemoveMemberHandler(), s.RequireAuth(tenantManagers...)))
	s.router.Post(RouteTransferOwnership, ChainMiddleware(s.TransferOwnershipHandler(), s.RequireAuth(tenantOwner...)))
	s.router.Post(RouteLeaveTenant, ChainMiddleware(s.LeaveTenantHandler(), s.RequireAuth(inTenant...)))
}
