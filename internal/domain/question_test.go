package domain_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"learnlab-client/internal/domain"
)

func TestQuestionDecodesVariants(t *testing.T) {
	raw := `[
		{"id":"q1","quiz_id":"z1","question_type":"multiple_choice","content":"2+2?","explanation":"basic",
		 "concepts":[{"concept":"arithmetic"}],
		 "multiple_choice_options":[{"id":"o1","content":"3","is_correct":false},{"id":"o2","content":"4","is_correct":true}]},
		{"id":"q2","quiz_id":"z1","question_type":"subjective","content":"Name the author","explanation":"",
		 "concepts":[],"subjective_answer":{"answer":"Orwell"}}
	]`
	var questions []domain.Question
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}

	describe := func(q domain.Question) string {
		return domain.MatchQuestion(q,
			func(mc domain.MultipleChoice) string { return "mc:" + mc.Correct()[0].ID },
			func(s domain.Subjective) string { return "subj:" + s.Answer.Answer },
		)
	}
	if got := describe(questions[0]); got != "mc:o2" {
		t.Fatalf("unexpected first question %q", got)
	}
	if got := describe(questions[1]); got != "subj:Orwell" {
		t.Fatalf("unexpected second question %q", got)
	}
	if questions[0].Concepts[0].Concept != "arithmetic" {
		t.Fatalf("expected concept tag, got %+v", questions[0].Concepts)
	}
}

func TestQuestionRejectsUnknownType(t *testing.T) {
	var q domain.Question
	err := json.Unmarshal([]byte(`{"id":"q9","question_type":"essay"}`), &q)
	if !errors.Is(err, domain.ErrUnknownQuestionType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestQuestionEncodesTaggedForm(t *testing.T) {
	q := domain.Question{ID: "q2", Body: domain.Subjective{Answer: domain.SubjectiveAnswer{Answer: "42"}}}
	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	_ = json.Unmarshal(data, &back)
	if back["question_type"] != "subjective" {
		t.Fatalf("expected subjective tag, got %v", back["question_type"])
	}
	if _, ok := back["multiple_choice_options"]; ok {
		t.Fatalf("subjective question should not carry options")
	}
}

func TestTimestampAcceptsNaiveDatetimes(t *testing.T) {
	var ts domain.Timestamp
	if err := json.Unmarshal([]byte(`"2024-03-01T10:20:30.123456"`), &ts); err != nil {
		t.Fatalf("naive datetime: %v", err)
	}
	if ts.Year() != 2024 || ts.Minute() != 20 {
		t.Fatalf("unexpected parse %v", ts.Time)
	}
	if err := json.Unmarshal([]byte(`null`), &ts); err != nil || !ts.IsZero() {
		t.Fatalf("expected null to reset, got %v %v", ts.Time, err)
	}
}

func TestNotificationToastDefaults(t *testing.T) {
	toast := domain.Notification{Type: domain.MessageNotification, Title: "Podcast ready", Message: "done"}.Toast()
	if toast.Variant != domain.VariantDefault {
		t.Fatalf("expected default variant, got %q", toast.Variant)
	}
	if toast.Duration != 5*time.Second {
		t.Fatalf("expected 5s duration, got %v", toast.Duration)
	}

	toast = domain.Notification{Variant: domain.VariantDestructive, Duration: 1500}.Toast()
	if toast.Variant != domain.VariantDestructive || toast.Duration != 1500*time.Millisecond {
		t.Fatalf("expected explicit values kept, got %+v", toast)
	}
}
