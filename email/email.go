package email

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Email sends transactional mail over SMTP. It implements token.Mailer.
type Email struct {
	from   string
	dialer *gomail.Dialer
}

func New(address string, password string, host string, port int) *Email {
	return &Email{
		from:   address,
		dialer: gomail.NewDialer(host, port, address, password),
	}
}

const otpBody = `<p>Thanks for joining SkillHive! Use the one-time password below to complete your sign-up:</p>
<p style="font-size:28px;font-weight:bold;letter-spacing:2px;">%s</p>
<p>The code is valid for the next 10 minutes. If you didn't request this, ignore this email.</p>`

func (e *Email) SendOTP(to string, otp string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Your SkillHive verification code")
	m.SetBody("text/html", fmt.Sprintf(otpBody, otp))

	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("sending otp email to %s: %w", to, err)
	}
	return nil
}
