package enums

// AccountRole tags access tokens. Accounts themselves live in separate tables.
type AccountRole string

const (
	AccountRoleMerchant  AccountRole = "merchant"
	AccountRoleAffiliate AccountRole = "affiliate"
)

var accountRoles = set[AccountRole]{AccountRoleMerchant, AccountRoleAffiliate}

func (r AccountRole) IsValid() bool { return accountRoles.has(r) }

func ParseAccountRole(value string) (AccountRole, error) {
	return accountRoles.parse("account role", value)
}
