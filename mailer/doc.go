// Package mailer provides the lireddit.Mailer implementations selected by
// MailConfig.Driver.
//
// The "smtp" driver delivers through github.com/wneessen/go-mail and dials a
// fresh connection per message. The "log" driver writes the message through
// slog instead of sending it, for local development.
package mailer
