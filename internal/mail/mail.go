// Package mail delivers transactional email. Delivery mechanics live
// behind the Sender contract so environments without a mail provider can
// run with the logging sender.
package mail

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Sender delivers a login OTP to an address.
type Sender interface {
	SendOTP(ctx context.Context, to, otp string) error
}

// Subject and body follow the service's original OTP template.
const otpSubject = "MUSICCY: Login OTP"

func otpBody(otp string) string {
	return fmt.Sprintf("<h1>Dear User,</h1>"+
		"<h4>OTP for Login is :</h4>"+
		"<h1><strong>%s</strong></h1>"+
		"<h4>This is a auto-generated email. Please do not reply to this email.</h4>"+
		"<h4>Regards</h4>", otp)
}

// LogSender writes the mail to the log instead of sending it. Used in
// development and tests.
type LogSender struct {
	From   string
	Logger *zap.Logger
}

// SendOTP logs the rendered mail.
func (s LogSender) SendOTP(ctx context.Context, to, otp string) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("mail: otp email",
		zap.String("from", s.From),
		zap.String("to", to),
		zap.String("subject", otpSubject),
		zap.String("body", otpBody(otp)))
	return nil
}
