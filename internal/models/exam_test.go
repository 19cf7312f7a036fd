package models

import (
	"testing"
	"time"
)

func TestExamWindow(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	exam := &Exam{
		StartTime:       start,
		EndTime:         start.Add(2 * time.Hour),
		DurationMinutes: 45,
	}

	tests := []struct {
		name    string
		at      time.Time
		open    bool
		started bool
		ended   bool
	}{
		{"before start", start.Add(-time.Minute), false, false, false},
		{"exactly at start", start, true, true, false},
		{"mid window", start.Add(time.Hour), true, true, false},
		{"exactly at end", exam.EndTime, true, true, false},
		{"after end", exam.EndTime.Add(time.Second), false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exam.IsOpen(tt.at); got != tt.open {
				t.Errorf("IsOpen(%v) = %v, want %v", tt.at, got, tt.open)
			}
			if got := exam.HasStarted(tt.at); got != tt.started {
				t.Errorf("HasStarted(%v) = %v, want %v", tt.at, got, tt.started)
			}
			if got := exam.HasEnded(tt.at); got != tt.ended {
				t.Errorf("HasEnded(%v) = %v, want %v", tt.at, got, tt.ended)
			}
		})
	}

	if exam.Duration() != 45*time.Minute {
		t.Errorf("Duration() = %v, want 45m", exam.Duration())
	}
}

func TestQuestionAutoGradable(t *testing.T) {
	model := "42"
	blank := ""

	tests := []struct {
		name     string
		question Question
		want     bool
	}{
		{"multiple choice", Question{Type: MultipleChoice}, true},
		{"short answer with model", Question{Type: ShortAnswer, ModelAnswer: &model}, true},
		{"short answer without model", Question{Type: ShortAnswer}, false},
		{"short answer with blank model", Question{Type: ShortAnswer, ModelAnswer: &blank}, false},
		{"essay", Question{Type: Essay}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.question.IsAutoGradable(); got != tt.want {
				t.Errorf("IsAutoGradable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCorrectChoiceID(t *testing.T) {
	q := Question{
		Type: MultipleChoice,
		Choices: []Choice{
			{ID: 1, Text: "a"},
			{ID: 2, Text: "b", IsCorrect: true},
			{ID: 3, Text: "c"},
		},
	}
	if got := q.CorrectChoiceID(); got == nil || *got != 2 {
		t.Errorf("CorrectChoiceID() = %v, want 2", got)
	}

	essay := Question{Type: Essay}
	if got := essay.CorrectChoiceID(); got != nil {
		t.Errorf("CorrectChoiceID() on essay = %v, want nil", got)
	}
}
