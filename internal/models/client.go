package models

import "strings"

// ApiClient is an administrator identified by a static API key
type ApiClient struct {
	Name        string   `json:"name"`
	ApiKey      string   `json:"-"`
	Permissions []string `json:"permissions"`
}

// HasPermission reports whether the client holds required.
// "*" grants everything and "results:*" grants every results permission.
func (c *ApiClient) HasPermission(required string) bool {
	if c == nil {
		return false
	}

	area, _, _ := strings.Cut(required, ":")
	for _, p := range c.Permissions {
		switch p {
		case "*", required, area + ":*":
			return true
		}
	}
	return false
}

// MaskedApiKey returns a loggable prefix of the key
func (c *ApiClient) MaskedApiKey() string {
	if len(c.ApiKey) < 8 {
		return "***"
	}
	return c.ApiKey[:8] + "..."
}
