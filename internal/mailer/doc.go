// Package mailer holds helpers shared by the mail transports. Transports
// live in the smtp and resend subpackages and implement harvest.Mailer.
package mailer
