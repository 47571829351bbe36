package common

// Roles granted through state role assignments. Module admins are stored per
// module and are not roles.
const (
	RoleVoucherIssuer      = "ROLE_VOUCHER_ISSUER"
	RoleRedemptionVerifier = "ROLE_REDEMPTION_VERIFIER"
	RoleImpactMinter       = "ROLE_IMPACT_MINTER"
	RoleBadgeMinter        = "ROLE_BADGE_MINTER"
)

var knownRoles = map[string]struct{}{
	RoleVoucherIssuer:      {},
	RoleRedemptionVerifier: {},
	RoleImpactMinter:       {},
	RoleBadgeMinter:        {},
}

// KnownRole reports whether role is one of the roles the ledger checks.
func KnownRole(role string) bool {
	_, ok := knownRoles[role]
	return ok
}

// ZeroAddress reports whether addr is the all-zero identifier.
func ZeroAddress(addr [20]byte) bool {
	return addr == [20]byte{}
}
