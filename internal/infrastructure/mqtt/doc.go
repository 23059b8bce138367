// Package mqtt provides the MQTT publisher used by storefront-auth.
//
// Two feeds leave the service over MQTT:
//   - storefront/mail/verification: OTP mail requests for the mail worker
//   - storefront/auth/events/<action>: authentication outcomes
//
// The client announces itself on storefront/system/status (retained) and
// registers a Last Will there so consumers notice a crash.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.AuthEvent("login"), event)
//
// TLS should be enabled in production (mqtt.broker.tls); anonymous access is
// for local development only.
package mqtt
