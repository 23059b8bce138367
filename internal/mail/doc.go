// Package mail delivers email verification codes for the auth service.
//
// Three transports implement auth.Mailer:
//   - RelayMailer publishes a JSON job to MQTT for an external mail worker
//   - SMTPMailer talks to an SMTP relay directly (STARTTLS, or implicit TLS on 465)
//   - LogMailer writes the code to the log; development only
//
// New picks one from mail.transport in the configuration.
package mail
