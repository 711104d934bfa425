package mesh

// checkSecurity 按安全策略评估调用方与方法。
// 拒绝名单优先；允许名单非空时为白名单；方法名单非空时限定方法。
func checkSecurity(policy SecurityPolicy, caller, method string) bool {
	for _, denied := range policy.DeniedCallers {
		if denied == caller {
			return false
		}
	}
	if len(policy.AllowedCallers) > 0 && !contains(policy.AllowedCallers, caller) {
		return false
	}
	if len(policy.AllowedMethods) > 0 && !contains(policy.AllowedMethods, method) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
