package auth

// Operation keys used by the HTTP layer.
const (
	PermCardRegister = "cards.register"
	PermCardRead     = "cards.read"
	PermCardStatus   = "cards.status"

	PermTapRecord    = "access.tap.record"
	PermEventsRead   = "access.events.read"
	PermPresenceRead = "access.presence.read"

	PermVisitorAdmit = "visitors.admit"
	PermVisitorRead  = "visitors.read"
	PermVisitorSweep = "visitors.sweep"

	PermQueueIssue  = "queue.ticket.issue"
	PermQueueServe  = "queue.serve"
	PermQueueRead   = "queue.read"
	PermQueueCancel = "queue.ticket.cancel"
)

// policy maps each operation to the roles directly allowed to invoke it.
// Hierarchy expansion happens in Allowed; list only the lowest role that
// should hold the capability.
var policy = map[string][]Role{
	PermCardRegister: {RoleSafetyOfficer},
	PermCardRead:     {RoleSafetyOfficer, RoleITPersonnel},
	PermCardStatus:   {RoleSafetyOfficer},

	PermTapRecord:    {RoleSafetyOfficer, RoleITPersonnel},
	PermEventsRead:   {RoleSafetyOfficer},
	PermPresenceRead: {RoleSafetyOfficer, RolePrincipal},

	PermVisitorAdmit: {RoleSafetyOfficer},
	PermVisitorRead:  {RoleSafetyOfficer},
	PermVisitorSweep: {RoleSafetyOfficer, RoleITPersonnel},

	PermQueueIssue:  {RoleStudent},
	PermQueueServe:  {RoleCashier},
	PermQueueRead:   {RoleCashier, RoleStudent},
	PermQueueCancel: {RoleCashier},
}
