// internal/app/engine/pairing/pairing.go

// Package pairing picks (recipient, subject) pairs for one dispatch round.
package pairing

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/dalemusser/whosthat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SeenLookup returns the subjects already shown to a recipient in a session.
type SeenLookup interface {
	SeenSubjects(ctx context.Context, sessionID primitive.ObjectID, recipientID string) ([]string, error)
}

// Pair is one recipient and the teammate whose photo they will be shown.
type Pair struct {
	Recipient models.RosterMember
	Subject   models.RosterMember
}

// Selector draws pairs using an injected random source.
type Selector struct {
	seen SeenLookup

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector builds a Selector. A nil src seeds from the runtime.
func NewSelector(seen SeenLookup, src rand.Source) *Selector {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Selector{seen: seen, rng: rand.New(src)}
}

// Candidates filters members down to playable, unique users.
func Candidates(members []models.RosterMember) []models.RosterMember {
	out := make([]models.RosterMember, 0, len(members))
	ids := make(map[string]struct{}, len(members))
	for _, m := range members {
		if !m.Playable() {
			continue
		}
		if _, dup := ids[m.ID]; dup {
			continue
		}
		ids[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// SelectPairs returns at most one pair per recipient. The seen set is scoped
// to sessionID so later rounds of the same day still find fresh subjects.
// Recipients with nothing left to see are skipped. A lookup error aborts the
// whole selection.
func (s *Selector) SelectPairs(ctx context.Context, members []models.RosterMember, sessionID primitive.ObjectID) ([]Pair, error) {
	pool := Candidates(members)
	if len(pool) < 2 {
		return nil, nil
	}

	var pairs []Pair
	for _, recipient := range pool {
		seenIDs, err := s.seen.SeenSubjects(ctx, sessionID, recipient.ID)
		if err != nil {
			return nil, fmt.Errorf("seen subjects for %s: %w", recipient.ID, err)
		}
		seen := make(map[string]struct{}, len(seenIDs)+1)
		for _, id := range seenIDs {
			seen[id] = struct{}{}
		}
		seen[recipient.ID] = struct{}{}

		eligible := make([]models.RosterMember, 0, len(pool))
		for _, m := range pool {
			if _, ok := seen[m.ID]; !ok {
				eligible = append(eligible, m)
			}
		}
		if len(eligible) == 0 {
			continue
		}
		pairs = append(pairs, Pair{Recipient: recipient, Subject: eligible[s.intN(len(eligible))]})
	}
	return pairs, nil
}

func (s *Selector) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}
