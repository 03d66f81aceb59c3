package valueobject

// Role - роль профиля относительно конкретной заявки.
type Role string

const (
	RoleNone       Role = "none"
	RoleRequester  Role = "requester"
	RoleContractor Role = "contractor"
)

func (r Role) IsParty() bool {
	return r == RoleRequester || r == RoleContractor
}
