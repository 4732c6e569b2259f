package assets

// Role is the narrative role of one slide within a format. The set is closed;
// anything read back from storage goes through ParseRole so an unknown tag
// degrades to Proof instead of leaking free-form strings into generation.
type Role string

const (
	RoleHook   Role = "hook"
	RoleSetup  Role = "setup"
	RoleProof  Role = "proof"
	RoleReveal Role = "reveal"
	RoleCta    Role = "cta"
)

// ParseRole maps a stored role tag to the closed enumeration. Tags outside
// the enumeration (including the extended template names list_item and
// comparison) fall back to Proof for positional purposes.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleHook, RoleSetup, RoleProof, RoleReveal, RoleCta:
		return Role(s)
	}
	return RoleProof
}

// RoleForPosition infers a slide's role from its 1-based index and the total
// slide count. First the frame (hook/cta), then setup, then the pre-reveal
// window, else proof.
func RoleForPosition(index, total int) Role {
	switch {
	case index == 1:
		return RoleHook
	case index == total:
		return RoleCta
	case index == 2:
		return RoleSetup
	case index >= total-2:
		// The two slides leading into the final one carry the payoff.
		return RoleReveal
	default:
		return RoleProof
	}
}
