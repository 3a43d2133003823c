package email

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/smtp"

	"github.com/pkg/errors"
)

type Sender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func NewSender(host, port, username, password, from string) *Sender {
	return &Sender{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
	}
}

const verificationTemplate = `
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2>Welcome to Pulse, {{.Username}}!</h2>
        <p>Your verification code is:</p>
        <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
        <p>Enter it in the app to activate your account. If you didn't sign
        up, you can safely ignore this email.</p>
    </div>
</body>
</html>
`

func (s *Sender) SendVerificationEmail(to, username, code string) error {
	t, err := template.New("verification").Parse(verificationTemplate)
	if err != nil {
		return errors.Wrap(err, "parsing template")
	}

	var body bytes.Buffer
	if err := t.Execute(&body, map[string]string{"Username": username, "Code": code}); err != nil {
		return errors.Wrap(err, "executing template")
	}

	// No relay configured: log the code instead so local development works
	// without an SMTP server.
	if s.Host == "" {
		log.Printf("MOCK EMAIL to %s: verification code %s", to, code)
		return nil
	}

	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Verify your Pulse account\r\n"+
		"MIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		s.From, to, body.String())

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	addr := fmt.Sprintf("%s:%s", s.Host, s.Port)
	return smtp.SendMail(addr, auth, s.From, []string{to}, []byte(message))
}
