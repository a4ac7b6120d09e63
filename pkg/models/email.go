package models

// EmailAddress is a named recipient or sender.
type EmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Email is the payload for the outbound notification email endpoint.
type Email struct {
	From        EmailAddress   `json:"from"`
	To          []EmailAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}
