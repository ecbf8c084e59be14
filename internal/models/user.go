package models

import "encoding/json"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// Privileged roles see every new booking.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleAgent
}

type User struct {
	ID           string        `json:"_id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Role         Role          `json:"role"`
	Phone        string        `json:"phone,omitempty"`
	IsActive     bool          `json:"isActive,omitempty"`
	Address      *UserAddress  `json:"address,omitempty"`
	AgentDetails *AgentDetails `json:"agentDetails,omitempty"`
}

// UnmarshalJSON accepts both "_id" (REST documents) and "id" (auth responses).
func (u *User) UnmarshalJSON(b []byte) error {
	type plain User
	var raw struct {
		plain
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*u = User(raw.plain)
	if u.ID == "" {
		u.ID = raw.AltID
	}
	return nil
}

type UserAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

type AgentDetails struct {
	VehicleType   string `json:"vehicleType"`
	LicenseNumber string `json:"licenseNumber"`
}

// RegisterInput is the profile posted to /api/auth/register.
type RegisterInput struct {
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Password     string        `json:"password"`
	Phone        string        `json:"phone"`
	Role         Role          `json:"role,omitempty"`
	Address      UserAddress   `json:"address"`
	AgentDetails *AgentDetails `json:"agentDetails,omitempty"`
}

type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
