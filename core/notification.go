package core

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

const notificationLayoutSource = `<h1>Hello from the FSLC 👋!</h1>
<p>🔒 A login token has been requested for <strong>{{.IdentityHandle}}</strong>, for a service that describes itself as:</p>
<ul><li><code>{"description": "{{.Description}}"}</code></li></ul>
<p>🚫 <strong>If you did not request this, please ignore this email.</strong></p>
<p>✅ Else, here's that link: <a href="{{.Link}}">{{.Link}}</a>.</p>
<code>==================</code>
<p>🐙 <a href="https://github.com/usufslc/aggie-auth">aggie-auth</a>, a project from the <a href="https://linux.usu.edu">USU Free Software and Linux Club</a></p>
`

type notificationView struct {
	IdentityHandle string
	Description    string
	Link           string
}

func parseNotificationLayout() (*template.Template, error) {
	layout, err := template.New("verification").Parse(notificationLayoutSource)
	if err != nil {
		return nil, fmt.Errorf("core: parse notification layout: %w", err)
	}
	return layout, nil
}

// ConfirmationLink builds the link the identity owner follows to confirm.
func ConfirmationLink(apiHost string, verificationToken string) string {
	query := url.Values{}
	query.Set("aggieToken", verificationToken)
	return strings.TrimRight(strings.TrimSpace(apiHost), "/") + "/authaggie?" + query.Encode()
}

// AcknowledgementURI is the callback of a bootstrap credential.
func AcknowledgementURI(apiHost string, apiToken string) string {
	return strings.TrimRight(strings.TrimSpace(apiHost), "/") + "/token/verify/" + url.PathEscape(apiToken)
}

func (s *Service) composeNotification(owner APICredential, verification VerificationCredential) (Notification, error) {
	link := ConfirmationLink(s.config.APIHost, verification.Token)
	view := notificationView{
		IdentityHandle: verification.IdentityHandle,
		Description:    owner.Description,
		Link:           link,
	}

	var body bytes.Buffer
	if err := s.notificationLayout.Execute(&body, view); err != nil {
		return Notification{}, fmt.Errorf("core: render notification: %w", err)
	}

	subject := verification.IdentityHandle + " - Auth Request"
	if prefix := strings.TrimSpace(s.config.Mail.SubjectPrefix); prefix != "" {
		subject = prefix + " " + subject
	}

	return Notification{
		Recipient:      verification.IdentityHandle + "@" + strings.TrimPrefix(strings.TrimSpace(s.config.Mail.Domain), "@"),
		Subject:        subject,
		HTMLBody:       body.String(),
		TextBody:       fmt.Sprintf("A login token has been requested for %s (%s). If you did not request this, please ignore this email. Else, confirm here: %s", verification.IdentityHandle, owner.Description, link),
		IdentityHandle: verification.IdentityHandle,
		Link:           link,
	}, nil
}
