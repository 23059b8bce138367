package mqtt

import "fmt"

// Topic prefixes for everything storefront-auth publishes.
const (
	TopicPrefix       = "storefront"
	TopicPrefixMail   = "storefront/mail"
	TopicPrefixAuth   = "storefront/auth"
	TopicPrefixSystem = "storefront/system"
)

// Topics provides builders for storefront MQTT topics.
//
//	topic := mqtt.Topics{}.AuthEvent("login")
//	// Returns: "storefront/auth/events/login"
type Topics struct{}

// MailVerification is consumed by the mail worker that delivers OTP emails.
//
// Example: storefront/mail/verification
func (Topics) MailVerification() string {
	return TopicPrefixMail + "/verification"
}

// AuthEvent returns the topic for one kind of authentication outcome.
//
// Example: storefront/auth/events/otp_verify
func (Topics) AuthEvent(action string) string {
	return fmt.Sprintf("%s/events/%s", TopicPrefixAuth, action)
}

// AllAuthEvents matches every auth event topic.
//
// Pattern: storefront/auth/events/+
func (Topics) AllAuthEvents() string {
	return TopicPrefixAuth + "/events/+"
}

// SystemStatus carries the retained online/offline status and the LWT.
//
// Example: storefront/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
