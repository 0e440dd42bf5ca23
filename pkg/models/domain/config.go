package domain

import "fmt"

// Credentials authenticate calls to the external reports API.
type Credentials struct {
	APIKey    string
	APISecret string
}

type CredentialProfile struct {
	Name        string
	Credentials Credentials
}

func (c CredentialProfile) String() string {
	return fmt.Sprintf("profile:%s", c.Name)
}
