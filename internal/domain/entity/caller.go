package entity

// Caller is the authenticated identity behind a request
type Caller struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Name string `json:"name"`
}

func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

func (c *Caller) IsStudent() bool {
	return c != nil && c.Role == RoleStudent
}

func (c *Caller) IsParent() bool {
	return c != nil && c.Role == RoleParent
}
