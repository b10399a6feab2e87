// internal/domain/models/gametemplate.go
package models

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TemplateKind selects the dispatch flow for a game.
type TemplateKind int

const (
	// TemplateKindPairing is the default guess-the-teammate flow.
	TemplateKindPairing TemplateKind = iota
	// TemplateKindOnboardingLink sends profile onboarding links instead of pairs.
	TemplateKindOnboardingLink
	// TemplateKindUnknown is a stored kind this build does not recognise.
	// The orchestrator skips such games.
	TemplateKindUnknown
)

// Stored values for GameTemplate.KindName.
const (
	TemplateKindNamePairing        = "pairing"
	TemplateKindNameOnboardingLink = "onboarding_link"
)

// legacyOnboardingNames are the template names, compared case-insensitively
// and in full, that older documents used to mark the onboarding flow before
// kind was stored explicitly.
var legacyOnboardingNames = map[string]bool{
	"onboarding":      true,
	"onboarding link": true,
}

func (k TemplateKind) String() string {
	switch k {
	case TemplateKindOnboardingLink:
		return TemplateKindNameOnboardingLink
	case TemplateKindUnknown:
		return "unknown"
	default:
		return TemplateKindNamePairing
	}
}

// GameTemplate describes what a game sends.
type GameTemplate struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name     string             `bson:"name" json:"name"`
	KindName string             `bson:"kind,omitempty" json:"kind,omitempty"`

	// Pairing templates
	Prompt      string `bson:"prompt,omitempty" json:"prompt,omitempty"`             // text shown above the options
	OptionCount int    `bson:"option_count,omitempty" json:"option_count,omitempty"` // 0 means the default
}

// Kind resolves the stored kind. Documents written before the kind field
// existed fall back to an exact legacy name match, and otherwise pair. A
// stored kind that is not recognised resolves to TemplateKindUnknown.
func (t GameTemplate) Kind() TemplateKind {
	switch strings.ToLower(strings.TrimSpace(t.KindName)) {
	case TemplateKindNameOnboardingLink:
		return TemplateKindOnboardingLink
	case TemplateKindNamePairing:
		return TemplateKindPairing
	case "":
		if legacyOnboardingNames[strings.ToLower(strings.TrimSpace(t.Name))] {
			return TemplateKindOnboardingLink
		}
		return TemplateKindPairing
	default:
		return TemplateKindUnknown
	}
}
