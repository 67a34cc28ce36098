package mailer

import (
	"fmt"

	"account_service/internal/models"

	"gopkg.in/gomail.v2"
)

type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
}

func (m *Mailer) Send(msg models.Message) error {
	mail := gomail.NewMessage()
	mail.SetHeader("To", msg.Email)
	mail.SetHeader("From", m.Username)
	mail.SetHeader("Subject", msg.Subject)

	mail.SetBody("text/plain", fmt.Sprintf(
		"Follow the link below to continue:\n\n%s\n\nIf you did not request this, ignore this message.",
		msg.Link,
	))

	dialer := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)

	return dialer.DialAndSend(mail)
}
