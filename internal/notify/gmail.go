package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// DefaultTokenFile is where an OAuth client's cached token is read from
const DefaultTokenFile = "token.json"

// GmailMailer sends email through the Gmail API as sender
type GmailMailer struct {
	service *gmail.Service
	sender  string
}

// NewGmailMailer creates a mailer from a credentials file.
//
// A service account key is used with domain-wide delegation, impersonating
// sender. An OAuth client file needs a token previously cached at tokenPath.
func NewGmailMailer(ctx context.Context, credentialsPath, tokenPath, sender string) (*GmailMailer, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	var kind struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &kind); err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	var ts oauth2.TokenSource
	if kind.Type == "service_account" {
		jwtConfig, err := google.JWTConfigFromJSON(b, gmail.GmailSendScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account credentials: %w", err)
		}
		jwtConfig.Subject = sender
		ts = jwtConfig.TokenSource(ctx)
	} else {
		config, err := google.ConfigFromJSON(b, gmail.GmailSendScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse credentials: %w", err)
		}
		tok, err := tokenFromFile(tokenPath)
		if err != nil {
			return nil, fmt.Errorf("unable to load cached token %s: %w", tokenPath, err)
		}
		ts = config.TokenSource(ctx, tok)
	}

	srv, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail client: %w", err)
	}

	return &GmailMailer{service: srv, sender: sender}, nil
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// Send delivers msg
func (g *GmailMailer) Send(ctx context.Context, msg Message) error {
	raw := base64.URLEncoding.EncodeToString([]byte(rfc822(g.sender, msg)))

	_, err := g.service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to send email to %s: %w", msg.To, err)
	}
	return nil
}

func rfc822(from string, msg Message) string {
	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return b.String()
}
