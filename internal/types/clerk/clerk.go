package clerk

import "encoding/json"

// ClerkWebhookEvent is the envelope Clerk posts to the webhook endpoint.
type ClerkWebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ClerkUserData is the payload of user.* events.
type ClerkUserData struct {
	ID             string              `json:"id"`
	Username       string              `json:"username"`
	FirstName      string              `json:"first_name"`
	LastName       string              `json:"last_name"`
	ImageURL       string              `json:"image_url"`
	EmailAddresses []ClerkEmailAddress `json:"email_addresses"`
}

type ClerkEmailAddress struct {
	EmailAddress string `json:"email_address"`
	Verification struct {
		Status string `json:"status"`
	} `json:"verification"`
}
