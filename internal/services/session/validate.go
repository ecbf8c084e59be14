package session

import (
	"regexp"

	"github.com/BearBump/ParcelDesk/internal/models"
)

const minPasswordLen = 6

var emailPattern = regexp.MustCompile(`^\S+@\S+$`)

func validateCredentials(email, password string) error {
	var v models.ValidationError
	checkEmail(&v, email)
	checkPassword(&v, password)
	return v.Err()
}

func validateRegistration(in models.RegisterInput) error {
	var v models.ValidationError
	v.Required("name", in.Name, "Name is required")
	checkEmail(&v, in.Email)
	v.Required("phone", in.Phone, "Phone number is required")
	checkPassword(&v, in.Password)
	v.Required("address.street", in.Address.Street, "Street address is required")
	v.Required("address.city", in.Address.City, "City is required")
	v.Required("address.state", in.Address.State, "State is required")
	v.Required("address.zipCode", in.Address.ZipCode, "ZIP code is required")
	if in.Role != "" && !in.Role.Valid() {
		v.Add("role", "Invalid role")
	}
	if in.Role == models.RoleAgent {
		var d models.AgentDetails
		if in.AgentDetails != nil {
			d = *in.AgentDetails
		}
		v.Required("agentDetails.vehicleType", d.VehicleType, "Vehicle type is required")
		v.Required("agentDetails.licenseNumber", d.LicenseNumber, "License number is required")
	}
	return v.Err()
}

func checkEmail(v *models.ValidationError, email string) {
	switch {
	case email == "":
		v.Add("email", "Email is required")
	case !emailPattern.MatchString(email):
		v.Add("email", "Invalid email address")
	}
}

func checkPassword(v *models.ValidationError, password string) {
	switch {
	case password == "":
		v.Add("password", "Password is required")
	case len(password) < minPasswordLen:
		v.Add("password", "Password must be at least 6 characters")
	}
}
