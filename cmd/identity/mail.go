package identity

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
)

// Message is an outgoing HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

func confirmationMessage(baseURL, to, code string) Message {
	link := strings.TrimRight(baseURL, "/") + "/confirm-email?code=" + url.QueryEscape(code)
	return Message{
		To:      to,
		Subject: "Confirm your registration",
		HTML: fmt.Sprintf(
			"<h1>Thank you for your registration</h1>\n"+
				"<p>To finish registration please follow the link below:\n"+
				"<a href=\"%s\">complete registration</a></p>",
			html.EscapeString(link),
		),
	}
}

func recoveryMessage(baseURL, to, code string) Message {
	link := strings.TrimRight(baseURL, "/") + "/password-recovery?recoveryCode=" + url.QueryEscape(code)
	return Message{
		To:      to,
		Subject: "Password recovery",
		HTML: fmt.Sprintf(
			"<h1>Password recovery</h1>\n"+
				"<p>To finish password recovery please follow the link below:\n"+
				"<a href=\"%s\">recovery password</a></p>",
			html.EscapeString(link),
		),
	}
}
