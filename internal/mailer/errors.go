package mailer

import "errors"

var (
	errSubject = errors.New("message subject is required")
	errBody    = errors.New("message body is required")
)
