package rbac

// Role constants
const (
	RoleOwner   = "owner"   // lists the pet, receives the adoption fee
	RoleAdopter = "adopter" // requests the pet, pays into escrow
	RoleArbiter = "arbiter" // internal callers: arbitration, moderation, operators
)

// Permission constants
const (
	PermManageListing    = "manage_listing"
	PermViewPetRequests  = "view_pet_requests"
	PermRespondRequest   = "respond_request"
	PermCompleteAdoption = "complete_adoption"
	PermWithdrawRequest  = "withdraw_request"
	PermInitiatePayment  = "initiate_payment"
	PermViewTransaction  = "view_transaction"
	PermConfirmTransfer  = "confirm_transfer"
	PermOpenDispute      = "open_dispute"
	PermResolveDispute   = "resolve_dispute"
	PermReleaseEscrow    = "release_escrow"
	PermRefundEscrow     = "refund_escrow"
	PermVerifyListing    = "verify_listing"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleOwner: {
		PermManageListing, PermViewPetRequests, PermRespondRequest, PermCompleteAdoption,
		PermViewTransaction, PermConfirmTransfer, PermOpenDispute,
	},
	RoleAdopter: {
		PermWithdrawRequest, PermInitiatePayment,
		PermViewTransaction, PermConfirmTransfer, PermOpenDispute,
	},
	RoleArbiter: {
		PermViewTransaction, PermResolveDispute, PermReleaseEscrow, PermRefundEscrow, PermVerifyListing,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsFinancialOperation reports whether the permission moves escrowed money.
// Those are never granted to transaction parties.
func IsFinancialOperation(permission string) bool {
	return permission == PermReleaseEscrow || permission == PermRefundEscrow || permission == PermResolveDispute
}
