// internal/app/engine/payload/payload.go

// Package payload builds the provider-neutral interactive message for one
// pair and owns the action-id and correlation-id conventions that response
// ingestion parses back.
package payload

import (
	"fmt"
	"html"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/dalemusser/whosthat/internal/domain/models"
	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultOptionCount = 4
	DefaultPrompt      = "Who's that teammate?"

	correctPrefix   = "correct"
	incorrectPrefix = "incorrect"
	correlationTag  = "gm_"
)

// Option is one answer button.
type Option struct {
	ActionID string
	Label    string
	Value    string
}

// Message is what the messaging adapter renders.
type Message struct {
	CorrelationID string // opaque, echoed back on click
	ImageURL      string
	AltText       string
	Prompt        string
	Options       []Option
	Fallback      string // notification text
}

// Correct returns the index of the correct option, or -1.
func (m Message) Correct() int {
	for i, o := range m.Options {
		if ActionKind(o.ActionID) == models.ActionCorrect {
			return i
		}
	}
	return -1
}

type Builder struct {
	policy *bluemonday.Policy

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBuilder returns a Builder. A nil src seeds from the runtime.
func NewBuilder(src rand.Source) *Builder {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Builder{policy: bluemonday.StrictPolicy(), rng: rand.New(src)}
}

// Build assembles the message for one pair. Distractors come from
// candidates with the subject and recipient removed; the correct option
// lands at a random position.
func (b *Builder) Build(tpl models.GameTemplate, messageID primitive.ObjectID, recipient, subject models.RosterMember, candidates []models.RosterMember) Message {
	n := tpl.OptionCount
	if n < 2 {
		n = DefaultOptionCount
	}

	var distractors []models.RosterMember
	for _, c := range candidates {
		if c.ID == subject.ID || c.ID == recipient.ID {
			continue
		}
		distractors = append(distractors, c)
	}

	b.mu.Lock()
	b.rng.Shuffle(len(distractors), func(i, j int) {
		distractors[i], distractors[j] = distractors[j], distractors[i]
	})
	if len(distractors) > n-1 {
		distractors = distractors[:n-1]
	}
	correctAt := b.rng.IntN(len(distractors) + 1)
	b.mu.Unlock()

	labels := make([]string, 0, len(distractors)+1)
	for _, d := range distractors {
		labels = append(labels, d.Label())
	}
	labels = slices.Insert(labels, correctAt, subject.Label())

	opts := make([]Option, len(labels))
	for i, label := range labels {
		prefix := incorrectPrefix
		if i == correctAt {
			prefix = correctPrefix
		}
		opts[i] = Option{
			ActionID: fmt.Sprintf("%s_%d", prefix, i),
			Label:    label,
			Value:    label,
		}
	}

	// Prompts are authored in a web form; strip markup, keep the text.
	prompt := strings.TrimSpace(html.UnescapeString(b.policy.Sanitize(tpl.Prompt)))
	if prompt == "" {
		prompt = DefaultPrompt
	}

	return Message{
		CorrelationID: EncodeCorrelation(messageID),
		ImageURL:      subject.ImageURL,
		AltText:       "Photo of a teammate",
		Prompt:        prompt,
		Options:       opts,
		Fallback:      prompt,
	}
}

// ActionKind maps a clicked action id to correct or incorrect. Anything
// starting with "correct" is correct.
func ActionKind(actionID string) string {
	if strings.HasPrefix(actionID, correctPrefix) {
		return models.ActionCorrect
	}
	return models.ActionIncorrect
}

// Points scores an action kind.
func Points(kind string) int {
	if kind == models.ActionCorrect {
		return models.PointsCorrect
	}
	return models.PointsIncorrect
}

// EncodeCorrelation renders a message id as the opaque correlation value.
func EncodeCorrelation(id primitive.ObjectID) string {
	return correlationTag + id.Hex()
}

// DecodeCorrelation parses a correlation value. ok is false for values that
// were not produced by EncodeCorrelation, such as other features' blocks.
func DecodeCorrelation(v string) (primitive.ObjectID, bool) {
	hex, found := strings.CutPrefix(strings.TrimSpace(v), correlationTag)
	if !found {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}
