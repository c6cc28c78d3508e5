package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

// InviteData fills the invite email.
type InviteData struct {
	InviterName string
	ContactName string
	JoinURL     string
}

// ReminderData fills the daily reminder email.
type ReminderData struct {
	RecipientName string
	FriendName    string
	Label         string
	AppURL        string
}

var inviteHTML = template.Must(template.New("invite").Parse(`<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto;">
  <h2>You've been invited!</h2>
  <p>Hey {{.ContactName}},</p>
  <p><strong>{{.InviterName}}</strong> is using Be That Friend to remember important dates for the people they care about, and they want you in their circle.</p>
  <p>Join now so {{.InviterName}} never misses your birthday or other special dates:</p>
  <p style="text-align: center; margin: 32px 0;">
    <a href="{{.JoinURL}}" style="background: #4f46e5; color: white; padding: 12px 24px; border-radius: 8px; text-decoration: none; font-weight: 600;">Accept Invite</a>
  </p>
  <p style="color: #6b7280; font-size: 14px;">Or copy this link: {{.JoinURL}}</p>
</div>
`))

var reminderHTML = template.Must(template.New("reminder").Parse(`<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto;">
  <h2>Don't forget!</h2>
  <p>Hey {{.RecipientName}},</p>
  <p>Just a friendly reminder that today is <strong>{{.FriendName}}</strong>'s <strong>{{.Label}}</strong>!</p>
  <p>Make sure to reach out and make their day special.</p>
  {{- if .AppURL}}
  <p style="text-align: center; margin: 32px 0;">
    <a href="{{.AppURL}}" style="background: #4f46e5; color: white; padding: 12px 24px; border-radius: 8px; text-decoration: none; font-weight: 600;">Open Be That Friend</a>
  </p>
  {{- end}}
</div>
`))

// InviteSubject is the subject line of an invite sent on the inviter's behalf.
func InviteSubject(d InviteData) string {
	return fmt.Sprintf("%s, join %s's Be That Friend circle!", d.ContactName, d.InviterName)
}

// RenderInvite builds the invite email addressed to to.
func RenderInvite(to string, d InviteData) (Message, error) {
	var buf bytes.Buffer
	if err := inviteHTML.Execute(&buf, d); err != nil {
		return Message{}, fmt.Errorf("render invite: %w", err)
	}
	return Message{
		To:      to,
		ToName:  d.ContactName,
		Subject: InviteSubject(d),
		HTML:    buf.String(),
		Text:    inviteText(d),
	}, nil
}

func inviteText(d InviteData) string {
	return fmt.Sprintf("Hey %s!\n\nI'm using Be That Friend to remember important dates. Join my circle and never miss a birthday: %s",
		d.ContactName, d.JoinURL)
}

// ReminderSubject is the subject line of a daily reminder.
func ReminderSubject(d ReminderData) string {
	return fmt.Sprintf("Don't forget — %s's %s is today!", d.FriendName, d.Label)
}

// RenderReminder builds the reminder email addressed to to.
func RenderReminder(to string, d ReminderData) (Message, error) {
	var buf bytes.Buffer
	if err := reminderHTML.Execute(&buf, d); err != nil {
		return Message{}, fmt.Errorf("render reminder: %w", err)
	}
	return Message{
		To:      to,
		ToName:  d.RecipientName,
		Subject: ReminderSubject(d),
		HTML:    buf.String(),
		Text: fmt.Sprintf("Hey %s,\n\nJust a friendly reminder that today is %s's %s! Make sure to reach out and make their day special.",
			d.RecipientName, d.FriendName, d.Label),
	}, nil
}

// MailtoURL builds a mailto: link that opens the user's own mail client with
// the invite prefilled.
func MailtoURL(to string, d InviteData) string {
	subject := fmt.Sprintf("%s, join my Be That Friend circle!", d.ContactName)
	q := "subject=" + pathEscape(subject) + "&body=" + pathEscape(inviteText(d))
	return "mailto:" + to + "?" + q
}

// pathEscape percent-encodes spaces as %20, which mail clients expect where
// query escaping would produce '+'.
func pathEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
