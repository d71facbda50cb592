package domain

// Role is the relationship between a staff member and a unit's reports.
type Role string

const (
	RoleAUL   Role = "aul"
	RoleHead  Role = "head"
	RoleAssoc Role = "assoc"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAUL, RoleHead, RoleAssoc:
		return true
	}
	return false
}

// Unit is an organizational unit that receives a report.
type Unit struct {
	ID   int    `json:"id" yaml:"id" db:"id"`
	Name string `json:"name" yaml:"name" db:"name"`
}

// Staff is a person who may receive reports.
type Staff struct {
	ID    int    `json:"id" yaml:"id" db:"id"`
	Name  string `json:"name" yaml:"name" db:"name"`
	Email string `json:"email" yaml:"email" db:"email"`
}

// RecipientBinding binds a staff member to a unit with a role.
type RecipientBinding struct {
	UnitID    int    `json:"unit_id" db:"unit_id"`
	Role      Role   `json:"role" db:"role"`
	StaffName string `json:"staff_name" db:"staff_name"`
	Email     string `json:"email" db:"email"`
}

// AccountBinding assigns an account/cost-center pair to a unit.
type AccountBinding struct {
	UnitID     int    `json:"unit_id" db:"unit_id"`
	Account    string `json:"account" db:"account"`
	CostCenter string `json:"cost_center" db:"cost_center"`
	Title      string `json:"title,omitempty" db:"title"`
}
