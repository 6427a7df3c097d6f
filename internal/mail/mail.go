// Package mail sends transactional email. Delivery is best effort: callers
// log failures and never block or roll back on them.
package mail

import (
	"fmt"
	"net/smtp"
	"strings"
)

type Notifier interface {
	SendMessageNotification(recipientEmail, senderName, adTitle string) error
	SendVerificationEmail(recipientEmail, verificationURL string) error
}

type SMTPNotifier struct {
	addr string
	from string
}

func NewSMTPNotifier(addr, from string) *SMTPNotifier {
	return &SMTPNotifier{addr: addr, from: from}
}

func (n *SMTPNotifier) SendMessageNotification(recipientEmail, senderName, adTitle string) error {
	subject := fmt.Sprintf("New message about %q", adTitle)
	body := fmt.Sprintf("%s sent you a message about your listing %q.\r\n\r\n"+
		"Sign in to read and reply.\r\n", senderName, adTitle)

	return n.send(recipientEmail, subject, body)
}

func (n *SMTPNotifier) SendVerificationEmail(recipientEmail, verificationURL string) error {
	body := fmt.Sprintf("Welcome to campuslist!\r\n\r\n"+
		"Verify your email address by opening the link below:\r\n\r\n%s\r\n\r\n"+
		"The link is valid for 24 hours. If you did not create this account, "+
		"ignore this email.\r\n", verificationURL)

	return n.send(recipientEmail, "Verify your campuslist account", body)
}

func (n *SMTPNotifier) send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + n.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(n.addr, nil, n.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	return nil
}
