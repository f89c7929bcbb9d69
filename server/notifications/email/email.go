package email

import (
	"fmt"
	"net/smtp"
)

// smtpServer stores the address of the SMTP server used to send emails.
var smtpServer string

// auth holds the authentication data needed to connect to the SMTP server.
// It is initialized by smtp.PlainAuth with the sender's credentials.
var auth smtp.Auth

// fromEmail stores the email address used as the "From" address in the
// emails that are sent.
var fromEmail string

// InitEmailService initializes the email service by establishing an SMTP
// connection to the configured email server.
// It accepts two arguments:
// - sender: the email address of the sender, used as the "From" address.
// - password: the password of the sender's email account.
//
// The function sets the SMTP server address and the sender's email address,
// builds the PlainAuth credentials, and dials the server once to verify the
// connection. It returns false and the error if any step fails.
func InitEmailService(sender, password string) (bool, error) {
	smtpServer = "smtp.gmail.com:587"
	fromEmail = sender

	auth = smtp.PlainAuth(
		"",
		sender,
		password,
		"smtp.gmail.com",
	)

	c, err := smtp.Dial(smtpServer)
	if err != nil {
		return false, fmt.Errorf("cannot connect to the SMTP server: %v", err)
	}

	err = c.Close()
	if err != nil {
		return false, fmt.Errorf("cannot close the SMTP connection: %v", err)
	}

	return true, nil
}

// SendBadgeEmail sends a congratulation email to a user who has just earned
// a badge.
// It accepts two arguments:
// - to: the email address of the recipient.
// - badgeTitle: the display title of the badge that was earned.
//
// The function sets the headers for the email, renders a small HTML body
// naming the badge, and sends the email over the established SMTP
// connection. It returns an error if there was a problem with any step.
func SendBadgeEmail(to, badgeTitle string) error {
	headers := make(map[string]string)
	headers["From"] = fromEmail
	headers["To"] = to
	headers["Subject"] = "You earned a new badge!"
	headers["MIME-version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=\"UTF-8\""

	message := ""
	for k, v := range headers {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}

	body := `
	<html>
		<head>
			<style>
				body {
					font-family: sans-serif;
					margin: 0;
					padding: 0;
				}
				.container {
					max-width: 600px;
					margin: 0 auto;
					padding: 10px;
					border-radius: 4px;
				}
				p {
					line-height: 1.6;
				}
			</style>
		</head>
		<body>
			<div class="container">
				<h1>Congratulations!</h1>
				<p>You just earned the <strong>` + badgeTitle + `</strong> badge.</p>
				<p>Keep the streak alive.</p>
			</div>
		</body>
	</html>
	`
	message += "\r\n" + body

	err := smtp.SendMail(
		smtpServer,
		auth,
		fromEmail,
		[]string{to},
		[]byte(message),
	)

	if err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}
