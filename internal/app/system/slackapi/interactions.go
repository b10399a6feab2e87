// internal/app/system/slackapi/interactions.go
package slackapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dalemusser/whosthat/internal/app/engine/ingest"
	json "github.com/goccy/go-json"
	"github.com/slack-go/slack"
)

// MaxInteractionBody caps the size of an interaction request body.
const MaxInteractionBody = 1 << 20

var (
	ErrBadSignature = errors.New("slack request signature invalid")
	ErrBadPayload   = errors.New("slack interaction payload malformed")
)

// VerifyRequest reads r's body and checks Slack's signing-secret HMAC and
// timestamp. The body is returned for parsing.
func VerifyRequest(r *http.Request, signingSecret string) ([]byte, error) {
	sv, err := slack.NewSecretsVerifier(r.Header, signingSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxInteractionBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if _, err := sv.Write(body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if err := sv.Ensure(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return body, nil
}

// Interaction is a parsed block_actions callback.
type Interaction struct {
	TeamID   string
	Callback ingest.Callback
}

// ParseInteraction decodes a form-encoded interaction body. ok is false for
// payload types other than block_actions, or when no action is present.
func ParseInteraction(body []byte) (in Interaction, ok bool, err error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return Interaction{}, false, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	raw := form.Get("payload")
	if raw == "" {
		return Interaction{}, false, ErrBadPayload
	}

	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(raw), &cb); err != nil {
		return Interaction{}, false, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if cb.Type != slack.InteractionTypeBlockActions || len(cb.ActionCallback.BlockActions) == 0 {
		return Interaction{}, false, nil
	}

	a := cb.ActionCallback.BlockActions[0]
	return Interaction{
		TeamID: cb.Team.ID,
		Callback: ingest.Callback{
			ResponderID:   cb.User.ID,
			ActionID:      a.ActionID,
			Value:         a.Value,
			CorrelationID: a.BlockID,
			ResponseURL:   cb.ResponseURL,
		},
	}, true, nil
}
