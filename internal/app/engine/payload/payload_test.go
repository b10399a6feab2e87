package payload

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/dalemusser/whosthat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func roster(ids ...string) []models.RosterMember {
	out := make([]models.RosterMember, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.RosterMember{ID: id, RealName: "Name " + id, ImageURL: "https://img/" + id})
	}
	return out
}

func TestBuild_ExactlyOneCorrect(t *testing.T) {
	b := NewBuilder(rand.NewPCG(1, 1))
	pool := roster("A", "B", "C", "D", "E", "F")
	msgID := primitive.NewObjectID()

	for i := 0; i < 50; i++ {
		msg := b.Build(models.GameTemplate{}, msgID, pool[0], pool[1], pool)

		if len(msg.Options) != DefaultOptionCount {
			t.Fatalf("options = %d, want %d", len(msg.Options), DefaultOptionCount)
		}
		correct := 0
		labels := map[string]bool{}
		for j, o := range msg.Options {
			if ActionKind(o.ActionID) == models.ActionCorrect {
				correct++
				if o.Label != "Name B" {
					t.Errorf("correct option label = %q, want subject", o.Label)
				}
			}
			if o.Label == "Name A" {
				t.Error("recipient must never be offered as an option")
			}
			if labels[o.Label] {
				t.Errorf("duplicate option %q", o.Label)
			}
			labels[o.Label] = true
			if !strings.HasSuffix(o.ActionID, "_"+string(rune('0'+j))) {
				t.Errorf("action id %q does not carry position %d", o.ActionID, j)
			}
		}
		if correct != 1 {
			t.Fatalf("correct options = %d, want 1", correct)
		}
		if msg.Correct() < 0 {
			t.Error("Correct() should find the subject")
		}
	}
}

func TestBuild_SmallPool(t *testing.T) {
	b := NewBuilder(rand.NewPCG(2, 2))
	pool := roster("A", "B")
	msg := b.Build(models.GameTemplate{}, primitive.NewObjectID(), pool[0], pool[1], pool)
	if len(msg.Options) != 1 || msg.Options[0].ActionID != "correct_0" {
		t.Errorf("two-person pool should give a single correct option, got %+v", msg.Options)
	}
}

func TestBuild_TemplateOverrides(t *testing.T) {
	b := NewBuilder(rand.NewPCG(3, 3))
	pool := roster("A", "B", "C", "D", "E", "F", "G")
	tpl := models.GameTemplate{
		OptionCount: 6,
		Prompt:      `<b>Guess</b> <script>alert(1)</script>who`,
	}
	msg := b.Build(tpl, primitive.NewObjectID(), pool[0], pool[1], pool)
	if len(msg.Options) != 6 {
		t.Errorf("options = %d, want 6", len(msg.Options))
	}
	if strings.Contains(msg.Prompt, "<") {
		t.Errorf("prompt not sanitised: %q", msg.Prompt)
	}
	if !strings.Contains(msg.Prompt, "Guess") {
		t.Errorf("prompt lost its text: %q", msg.Prompt)
	}
}

func TestBuild_CarriesSubjectAndCorrelation(t *testing.T) {
	b := NewBuilder(nil)
	pool := roster("A", "B", "C")
	id := primitive.NewObjectID()
	msg := b.Build(models.GameTemplate{}, id, pool[0], pool[2], pool)
	if msg.ImageURL != "https://img/C" {
		t.Errorf("image = %q", msg.ImageURL)
	}
	if msg.Prompt != DefaultPrompt {
		t.Errorf("prompt = %q", msg.Prompt)
	}
	got, ok := DecodeCorrelation(msg.CorrelationID)
	if !ok || got != id {
		t.Errorf("DecodeCorrelation(%q) = %s, %v", msg.CorrelationID, got.Hex(), ok)
	}
}

func TestActionKindAndPoints(t *testing.T) {
	tests := []struct {
		action string
		kind   string
		points int
	}{
		{"correct_0", models.ActionCorrect, 10},
		{"correct", models.ActionCorrect, 10},
		{"incorrect_2", models.ActionIncorrect, 0},
		{"something_else", models.ActionIncorrect, 0},
		{"", models.ActionIncorrect, 0},
	}
	for _, tt := range tests {
		kind := ActionKind(tt.action)
		if kind != tt.kind || Points(kind) != tt.points {
			t.Errorf("%q -> %s/%d, want %s/%d", tt.action, kind, Points(kind), tt.kind, tt.points)
		}
	}
}

func TestDecodeCorrelation_Rejects(t *testing.T) {
	for _, v := range []string{"", "gm_", "gm_nothex", "other_block", primitive.NewObjectID().Hex()} {
		if _, ok := DecodeCorrelation(v); ok {
			t.Errorf("DecodeCorrelation(%q) should fail", v)
		}
	}
}

func TestBuild_PromptKeepsPunctuation(t *testing.T) {
	b := NewBuilder(nil)
	pool := roster("A", "B")
	msg := b.Build(models.GameTemplate{Prompt: "Who's this? Q&A time"}, primitive.NewObjectID(), pool[0], pool[1], pool)
	if msg.Prompt != "Who's this? Q&A time" {
		t.Errorf("prompt = %q", msg.Prompt)
	}
}
