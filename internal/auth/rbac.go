package auth

// Policy is a deny-by-default entitlement check evaluated against an
// already-resolved AuthContext. It never touches the database.
type Policy struct {
	AnyOf       []string
	AllOf       []string
	AdminBypass bool
}

// NewPolicy returns a policy with the default admin bypass enabled.
func NewPolicy() Policy {
	return Policy{AdminBypass: true}
}

// Allows evaluates the policy. A nil context always denies.
func (p Policy) Allows(ac *AuthContext) bool {
	if ac == nil {
		return false
	}

	if p.AdminBypass && ac.IsAdmin() {
		return true
	}

	for _, required := range p.AllOf {
		if !ac.HasEntitlement(required) {
			return false
		}
	}

	if len(p.AnyOf) > 0 {
		held := false
		for _, candidate := range p.AnyOf {
			if ac.HasEntitlement(candidate) {
				held = true
				break
			}
		}
		if !held {
			return false
		}
	}

	return true
}
