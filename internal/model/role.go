package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role определяет роль пользователя на платформе.
type Role string

const (
	RoleAdmin               Role = "admin"
	RoleBrandRepresentative Role = "brand_representative"
	RoleBarManager          Role = "bar_manager"
	RoleBartender           Role = "bartender"
	RoleTestBartender       Role = "test_bartender"
)

var knownRoles = map[Role]struct{}{
	RoleAdmin:               {},
	RoleBrandRepresentative: {},
	RoleBarManager:          {},
	RoleBartender:           {},
	RoleTestBartender:       {},
}

// ParseRole приводит строковое представление роли к перечислению.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownRoles[r]; !ok {
		return "", &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", s)}
	}
	return r, nil
}

// UnmarshalJSON принимает роль как строку или как объект {"name": "..."}.
func (r *Role) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return &ValidationError{Field: "role", Reason: "must be a string or an object with name"}
		}
		name = obj.Name
	}

	parsed, err := ParseRole(name)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
