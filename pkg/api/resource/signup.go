package resource

import "fmt"

type SignupResource struct {
	FullName   string `json:"fullName"`
	Department string `json:"department"`
}

type SignupResultResource struct {
	Recipients int `json:"recipients"`
}

func NewSignupResult(n int) *SignupResultResource {
	return &SignupResultResource{
		Recipients: n,
	}
}

func ValidateSignup(r *SignupResource) error {
	if r.FullName == "" {
		return fmt.Errorf("fullName is required")
	}
	return nil
}
