package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultAPIBase  = "https://gmail.googleapis.com/gmail/v1/users/me"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
)

// GmailConfig carries the OAuth client and push-topic settings for the
// monitored inbox.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	PubSubTopic  string

	// APIBase and TokenURL override the Google endpoints in tests.
	APIBase  string
	TokenURL string
}

// Gmail implements Provider over the Gmail REST API. Access tokens are
// minted from the long-lived refresh token and cached until shortly before
// expiry.
type Gmail struct {
	cfg  GmailConfig
	http *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

var _ Provider = (*Gmail)(nil)

// NewGmail builds a Gmail provider. Returns an error when the OAuth
// credentials are incomplete; callers treat that as "monitoring disabled"
// rather than fatal.
func NewGmail(cfg GmailConfig) (*Gmail, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("mailbox: gmail credentials not configured")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	return &Gmail{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a valid access token, refreshing when the cached one is
// within a minute of expiry.
func (g *Gmail) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Until(g.tokenExpiry) > time.Minute {
		return g.accessToken, nil
	}

	form := url.Values{
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
		"refresh_token": {g.cfg.RefreshToken},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh access token: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}

	g.accessToken = tok.AccessToken
	g.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return g.accessToken, nil
}

// get performs an authenticated GET against the mailbox API.
func (g *Gmail) get(ctx context.Context, path string, out interface{}) error {
	return g.do(ctx, http.MethodGet, path, nil, out)
}

func (g *Gmail) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	tok, err := g.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.APIBase+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("mailbox api: %w", err)
	}
	defer resp.Body.Close()

	respBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mailbox api: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(respBytes)))
	}
	if out != nil {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return fmt.Errorf("decode mailbox response: %w", err)
		}
	}
	return nil
}

type watchResponse struct {
	HistoryID  string `json:"historyId"`
	Expiration string `json:"expiration"` // epoch milliseconds as string
}

// Watch implements Provider. The subscription targets the inbox label and
// expires after roughly seven days; callers schedule renewal.
func (g *Gmail) Watch(ctx context.Context) (time.Time, error) {
	if g.cfg.PubSubTopic == "" {
		return time.Time{}, errors.New("mailbox: push topic not configured")
	}
	body := strings.NewReader(fmt.Sprintf(`{"topicName":%q,"labelIds":["INBOX"]}`, g.cfg.PubSubTopic))

	var out watchResponse
	if err := g.do(ctx, http.MethodPost, "/watch", body, &out); err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(out.Expiration, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watch expiration %q: %w", out.Expiration, err)
	}
	exp := time.UnixMilli(ms)
	log.Info().Time("expires", exp).Msg("mailbox watch registered")
	return exp, nil
}

type historyResponse struct {
	History []struct {
		MessagesAdded []struct {
			Message struct {
				ID string `json:"id"`
			} `json:"message"`
		} `json:"messagesAdded"`
	} `json:"history"`
	NextPageToken string `json:"nextPageToken"`
}

// HistorySince implements Provider, paging through the change log and
// collecting every added message ID.
func (g *Gmail) HistorySince(ctx context.Context, startHistoryID string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		path := "/history?historyTypes=messageAdded&startHistoryId=" + url.QueryEscape(startHistoryID)
		if pageToken != "" {
			path += "&pageToken=" + url.QueryEscape(pageToken)
		}
		var out historyResponse
		if err := g.get(ctx, path, &out); err != nil {
			return nil, err
		}
		for _, rec := range out.History {
			for _, added := range rec.MessagesAdded {
				ids = append(ids, added.Message.ID)
			}
		}
		if out.NextPageToken == "" {
			return ids, nil
		}
		pageToken = out.NextPageToken
	}
}

type listResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// ListRecentUnread implements Provider.
func (g *Gmail) ListRecentUnread(ctx context.Context, max int) ([]string, error) {
	path := fmt.Sprintf("/messages?maxResults=%d&q=%s", max, url.QueryEscape("is:unread"))
	var out listResponse
	if err := g.get(ctx, path, &out); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out.Messages))
	for _, m := range out.Messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

type messagePart struct {
	MimeType string `json:"mimeType"`
	Body     struct {
		Data string `json:"data"`
	} `json:"body"`
	Headers []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Parts []messagePart `json:"parts"`
}

type messageResponse struct {
	ID      string      `json:"id"`
	Payload messagePart `json:"payload"`
}

// GetMessage implements Provider.
func (g *Gmail) GetMessage(ctx context.Context, id string) (*Message, error) {
	var out messageResponse
	if err := g.get(ctx, "/messages/"+url.PathEscape(id)+"?format=full", &out); err != nil {
		return nil, err
	}

	msg := &Message{ID: out.ID}
	for _, h := range out.Payload.Headers {
		switch h.Name {
		case "From":
			msg.From = h.Value
		case "Subject":
			msg.Subject = h.Value
		}
	}
	msg.Body = extractBody(&out.Payload)
	return msg, nil
}

// extractBody walks the MIME tree depth-first and returns the first decoded
// text part: a flat body wins, then text/plain or text/html leaves, then
// nested multiparts.
func extractBody(p *messagePart) string {
	if p.Body.Data != "" {
		if body := decodeBody(p.Body.Data); body != "" {
			return body
		}
	}
	for i := range p.Parts {
		part := &p.Parts[i]
		if part.MimeType == "text/plain" || part.MimeType == "text/html" {
			if body := decodeBody(part.Body.Data); body != "" {
				return body
			}
		}
		if len(part.Parts) > 0 {
			if body := extractBody(part); body != "" {
				return body
			}
		}
	}
	return ""
}
