package user

// Roles, lowest to highest privilege.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

type User struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Credential string `json:"-"` // never expose the stored secret in JSON
	Avatar     string `json:"avatar,omitempty"`
}

// PublicUser is the client-facing projection of a User.
type PublicUser struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Avatar: u.Avatar,
	}
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// CreateUserParams carries the fields for a new record. Credential must
// already be in its stored form (bcrypt hash for new accounts).
type CreateUserParams struct {
	Name       string
	Email      string
	Role       string
	Credential string
	Avatar     string
}

// UpdateUserParams is a partial patch; nil fields are left untouched.
type UpdateUserParams struct {
	Name       *string
	Email      *string
	Role       *string
	Credential *string
	Avatar     *string
}

// Apply merges the patch into u.
func (p UpdateUserParams) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Credential != nil {
		u.Credential = *p.Credential
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
}
