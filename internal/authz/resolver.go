package authz

// ResolveEffective merges role grants with user overrides into the effective
// capability set: start from the role's keys, drop keys revoked by a negative
// override, add keys granted by a positive override. Pure and deterministic;
// duplicate override rows are a store-layer violation, the last-seen value
// wins when they occur anyway.
func ResolveEffective(roleKeys []string, overrides []UserOverride) map[string]struct{} {
	effective := make(map[string]struct{}, len(roleKeys)+len(overrides))
	for _, key := range roleKeys {
		effective[key] = struct{}{}
	}
	for _, override := range overrides {
		if override.CanView {
			effective[override.CapabilityKey] = struct{}{}
		} else {
			delete(effective, override.CapabilityKey)
		}
	}
	return effective
}
