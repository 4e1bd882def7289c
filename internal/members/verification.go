package members

// RecomputeVerification reports whether a member counts as verified: they have at least
// one dependent and every dependent, together with its certificate, is approved.
func RecomputeVerification(_ Member, dependents []Dependent) bool {
	if len(dependents) == 0 {
		return false
	}
	for _, d := range dependents {
		if d.Status != StatusApproved || d.CertificateStatus != StatusApproved {
			return false
		}
	}
	return true
}
