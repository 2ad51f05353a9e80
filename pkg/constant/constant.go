package constant

// Roles known to the permission matrix.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleSeller   = "seller"
	RoleSupplier = "supplier"
	RolePartner  = "partner"
	RoleCustomer = "customer"
)

// DefaultUserRole is assigned to newly registered accounts.
const DefaultUserRole = RoleCustomer

// Account status values.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Single-use token kinds.
const (
	TokenKindPasswordReset     = "password_reset"
	TokenKindEmailVerification = "email_verification"
)

// Failure reasons recorded in the login attempt log. Only the generic
// invalid-credentials message ever leaves the service.
const (
	ReasonAccountNotFound = "account_not_found"
	ReasonInvalidPassword = "invalid_password"
	ReasonAccountLocked   = "account_locked"
	ReasonAccountInactive = "account_inactive"
	ReasonTooManyFromIP   = "too_many_attempts_from_ip"
	ReasonTooManyForEmail = "too_many_attempts_for_email"
)
