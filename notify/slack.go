package notify

import (
	"context"
	"strings"

	"github.com/slack-go/slack"
	"golang.org/x/xerrors"

	"github.com/soter-security/soter/scan"
)

const slackColor = "#dc3232"

// Slack posts the findings to an incoming webhook. Clean results are not
// reported.
type Slack struct {
	webhookURL   string
	site         string
	dashboardURL string
}

func NewSlack(webhookURL, site, homeURL string) Slack {
	return Slack{
		webhookURL:   webhookURL,
		site:         site,
		dashboardURL: dashboardURL(homeURL),
	}
}

func (n Slack) Notify(result scan.Result) error {
	if !result.Vulnerable() {
		return nil
	}

	if err := slack.PostWebhookContext(context.Background(), n.webhookURL, n.message(result)); err != nil {
		return xerrors.Errorf("failed to post to Slack: %w", err)
	}
	return nil
}

func (n Slack) message(result scan.Result) *slack.WebhookMessage {
	text := Subject(n.site, len(result.Findings))
	if n.dashboardURL != "" {
		text += " <" + n.dashboardURL + "|Go To Dashboard>"
	}

	msg := &slack.WebhookMessage{Text: text}
	for _, f := range result.Findings {
		s := Summarize(f.Vulnerability)
		links := make([]string, 0, len(s.Links))
		for _, l := range s.Links {
			links = append(links, "<"+l.URL+"|"+l.Host+">")
		}

		msg.Attachments = append(msg.Attachments, slack.Attachment{
			Color:     slackColor,
			Title:     s.Title,
			TitleLink: s.Links[len(s.Links)-1].URL,
			Text:      strings.Join(links, " "),
			Footer:    f.Component.String() + " | " + strings.Join(s.Meta, " | "),
		})
	}
	return msg
}
