// internal/app/system/slackapi/client.go

// Package slackapi is the Slack side of the messaging provider: outbound
// Web API calls for dispatch and onboarding, response_url follow-ups, and
// verification and parsing of inbound interaction callbacks.
package slackapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/whosthat/internal/app/engine/payload"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Defaults for outbound pacing. Slack's chat.postMessage tier allows roughly
// one message per second per channel with short bursts.
const (
	DefaultPostInterval = 200 * time.Millisecond
	DefaultPostBurst    = 5

	usersPageSize = 200
)

// RateLimitedError is returned when Slack answers 429.
type RateLimitedError struct {
	Op         string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("slack %s: rate limited, retry after %s", e.Op, e.RetryAfter)
}

// IsRateLimited reports whether err is, or wraps, a RateLimitedError.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// Options configures a Client. Zero values take the defaults.
type Options struct {
	PostInterval time.Duration
	PostBurst    int
	HTTPClient   *http.Client
	// APIURL overrides https://slack.com/api/. Must end with a slash.
	APIURL string
}

// Client makes Slack Web API calls on behalf of any installed workspace.
// The bot token is passed per call; it is never logged.
type Client struct {
	limiter *rate.Limiter
	http    *http.Client
	apiURL  string
	log     *zap.Logger
}

func New(opts Options, log *zap.Logger) *Client {
	if opts.PostInterval <= 0 {
		opts.PostInterval = DefaultPostInterval
	}
	if opts.PostBurst <= 0 {
		opts.PostBurst = DefaultPostBurst
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		limiter: rate.NewLimiter(rate.Every(opts.PostInterval), opts.PostBurst),
		http:    opts.HTTPClient,
		apiURL:  opts.APIURL,
		log:     log,
	}
}

func (c *Client) api(token string) *slack.Client {
	opts := []slack.Option{slack.OptionHTTPClient(c.http)}
	if c.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(c.apiURL))
	}
	return slack.New(token, opts...)
}

func (c *Client) wait(ctx context.Context, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("slack %s: %w", op, err)
	}
	return nil
}

func (c *Client) classify(op string, err error) error {
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		c.log.Warn("slack rate limited", zap.String("op", op), zap.Duration("retry_after", rl.RetryAfter))
		return &RateLimitedError{Op: op, RetryAfter: rl.RetryAfter}
	}
	return fmt.Errorf("slack %s: %w", op, err)
}

// ListMembers pages through users.list. Slack's 429s are returned, not
// slept on, so the roster cache can fall back to a stale copy.
func (c *Client) ListMembers(ctx context.Context, token string) ([]models.RosterMember, error) {
	const op = "users.list"

	var out []models.RosterMember
	var err error
	p := c.api(token).GetUsersPaginated(slack.GetUsersOptionLimit(usersPageSize))
	for {
		if werr := c.wait(ctx, op); werr != nil {
			return nil, werr
		}
		p, err = p.Next(ctx)
		if p.Done(err) {
			break
		}
		if err != nil {
			return nil, c.classify(op, err)
		}
		for _, u := range p.Users {
			out = append(out, toMember(u))
		}
	}
	return out, nil
}

func toMember(u slack.User) models.RosterMember {
	img := u.Profile.Image512
	if img == "" {
		img = u.Profile.Image192
	}
	return models.RosterMember{
		ID:          u.ID,
		Name:        u.Name,
		RealName:    u.RealName,
		DisplayName: u.Profile.DisplayName,
		ImageURL:    img,
		IsBot:       u.IsBot,
		IsAppUser:   u.IsAppUser,
		Deleted:     u.Deleted,
	}
}

// OpenDirectChannel returns the id of the bot's DM channel with userID.
func (c *Client) OpenDirectChannel(ctx context.Context, token, userID string) (string, error) {
	const op = "conversations.open"
	if err := c.wait(ctx, op); err != nil {
		return "", err
	}
	ch, _, _, err := c.api(token).OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return "", c.classify(op, err)
	}
	return ch.ID, nil
}

// PostInteractiveMessage renders msg as Block Kit and posts it. It returns
// the message ts.
func (c *Client) PostInteractiveMessage(ctx context.Context, token, channelID string, msg payload.Message) (string, error) {
	return c.post(ctx, token, channelID,
		slack.MsgOptionBlocks(Blocks(msg)...),
		slack.MsgOptionText(msg.Fallback, false))
}

// PostText posts a plain mrkdwn message.
func (c *Client) PostText(ctx context.Context, token, channelID, text string) (string, error) {
	return c.post(ctx, token, channelID, slack.MsgOptionText(text, false))
}

func (c *Client) post(ctx context.Context, token, channelID string, opts ...slack.MsgOption) (string, error) {
	const op = "chat.postMessage"
	if err := c.wait(ctx, op); err != nil {
		return "", err
	}
	_, ts, err := c.api(token).PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", c.classify(op, err)
	}
	return ts, nil
}

// PostFollowUp answers through a callback's response_url. The message is
// ephemeral and leaves the original in place.
func (c *Client) PostFollowUp(ctx context.Context, responseURL, text string) error {
	err := slack.PostWebhookCustomHTTPContext(ctx, responseURL, c.http, &slack.WebhookMessage{
		Text:         text,
		ResponseType: "ephemeral",
	})
	if err != nil {
		return c.classify("response_url", err)
	}
	return nil
}

// Blocks renders an interactive message. The actions block carries the
// correlation id as its block_id, which Slack echoes on every click.
func Blocks(msg payload.Message) []slack.Block {
	blocks := make([]slack.Block, 0, 3)
	if msg.ImageURL != "" {
		blocks = append(blocks, slack.NewImageBlock(msg.ImageURL, msg.AltText, "", nil))
	}
	blocks = append(blocks, slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, msg.Prompt, false, false), nil, nil))

	buttons := make([]slack.BlockElement, 0, len(msg.Options))
	for _, o := range msg.Options {
		buttons = append(buttons, slack.NewButtonBlockElement(o.ActionID, o.Value,
			slack.NewTextBlockObject(slack.PlainTextType, o.Label, false, false)))
	}
	blocks = append(blocks, slack.NewActionBlock(msg.CorrelationID, buttons...))
	return blocks
}
