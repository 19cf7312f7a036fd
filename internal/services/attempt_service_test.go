package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	appvalidator "github.com/moheebaljmaly/tafawuq-exam-central/internal/validator"
)

var testClock = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func newTestAttemptService(f *fakeRepository) *attemptService {
	return &attemptService{
		repo:      f,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		validator: appvalidator.NewBusinessValidator(),
		now:       func() time.Time { return testClock },
	}
}

// seedExam creates an active exam whose window contains testClock.
func seedExam(f *fakeRepository) *models.Exam {
	return f.addExam(&models.Exam{
		CreatedBy:       "teacher-1",
		Title:           "Algebra Midterm",
		JoinCode:        "AB12CD",
		DurationMinutes: 30,
		StartTime:       testClock.Add(-time.Hour),
		EndTime:         testClock.Add(2 * time.Hour),
		IsActive:        true,
		Settings:        models.ExamSettings{ShowResults: true},
	})
}

func strPtr(s string) *string { return &s }
func uintPtr(u uint) *uint    { return &u }

// seedMCQuestion links a multiple choice question to the exam and
// returns the id of its correct choice.
func seedMCQuestion(f *fakeRepository, exam *models.Exam, order int) (*models.Question, uint) {
	q := f.addQuestion(&models.Question{
		CreatedBy: exam.CreatedBy,
		Type:      models.MultipleChoice,
		Text:      "Pick the right one",
		Points:    2,
		Choices: []models.Choice{
			{Text: "right", IsCorrect: true, Order: 1},
			{Text: "wrong", Order: 2},
		},
	})
	f.addLink(exam.ID, q.ID, order, nil)
	return q, q.Choices[0].ID
}

func seedShortAnswer(f *fakeRepository, exam *models.Exam, order int, model *string) *models.Question {
	q := f.addQuestion(&models.Question{
		CreatedBy:   exam.CreatedBy,
		Type:        models.ShortAnswer,
		Text:        "Answer briefly",
		Points:      1,
		ModelAnswer: model,
	})
	f.addLink(exam.ID, q.ID, order, nil)
	return q
}

func seedEssay(f *fakeRepository, exam *models.Exam, order int) *models.Question {
	q := f.addQuestion(&models.Question{
		CreatedBy: exam.CreatedBy,
		Type:      models.Essay,
		Text:      "Discuss at length",
		Points:    5,
	})
	f.addLink(exam.ID, q.ID, order, nil)
	return q
}

func startAttempt(t *testing.T, svc *attemptService, studentID string, examID uint) *models.ExamAttempt {
	t.Helper()
	join, err := svc.Join(context.Background(), studentID, examID)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	resp, err := svc.Start(context.Background(), studentID, join.Attempt.ID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return resp.ExamAttempt
}

func TestJoin(t *testing.T) {
	t.Run("creates a registered attempt", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		svc := newTestAttemptService(f)

		resp, err := svc.Join(context.Background(), "student-1", exam.ID)
		if err != nil {
			t.Fatalf("Join() error = %v", err)
		}
		if resp.Existing {
			t.Error("first join reported Existing = true")
		}
		if resp.Attempt.Status != models.AttemptRegistered {
			t.Errorf("status = %q, want %q", resp.Attempt.Status, models.AttemptRegistered)
		}
		if !resp.Attempt.RegisteredAt.Equal(testClock) {
			t.Errorf("RegisteredAt = %v, want %v", resp.Attempt.RegisteredAt, testClock)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		svc := newTestAttemptService(f)

		first, err := svc.Join(context.Background(), "student-1", exam.ID)
		if err != nil {
			t.Fatalf("Join() error = %v", err)
		}
		second, err := svc.Join(context.Background(), "student-1", exam.ID)
		if err != nil {
			t.Fatalf("second Join() error = %v", err)
		}
		if !second.Existing {
			t.Error("second join reported Existing = false")
		}
		if second.Attempt.ID != first.Attempt.ID {
			t.Errorf("second join attempt id = %d, want %d", second.Attempt.ID, first.Attempt.ID)
		}
	})

	t.Run("lost insert race returns the winner's attempt", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		svc := newTestAttemptService(f)

		// The winner's row lands between our existence check and our
		// insert. The fake's unique index rejects the insert exactly
		// like the real index does.
		winner := &models.ExamAttempt{
			ExamID:       exam.ID,
			StudentID:    "student-1",
			Status:       models.AttemptRegistered,
			RegisteredAt: testClock.Add(-time.Second),
		}
		if err := f.Attempt().Create(context.Background(), nil, winner); err != nil {
			t.Fatalf("seeding winner: %v", err)
		}

		resp, err := svc.Join(context.Background(), "student-1", exam.ID)
		if err != nil {
			t.Fatalf("Join() error = %v", err)
		}
		if !resp.Existing || resp.Attempt.ID != winner.ID {
			t.Errorf("got attempt %d existing=%v, want winner %d existing=true",
				resp.Attempt.ID, resp.Existing, winner.ID)
		}
	})

	t.Run("rejects after completion", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		seedMCQuestion(f, exam, 1)
		svc := newTestAttemptService(f)

		attempt := startAttempt(t, svc, "student-1", exam.ID)
		if _, err := svc.Submit(context.Background(), "student-1", attempt.ID, &SubmitAnswersRequest{}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		if _, err := svc.Join(context.Background(), "student-1", exam.ID); !errors.Is(err, ErrAttemptAlreadySubmitted) {
			t.Errorf("Join() after completion error = %v, want ErrAttemptAlreadySubmitted", err)
		}
	})

	t.Run("timing and visibility gates", func(t *testing.T) {
		f := newFakeRepository()
		future := f.addExam(&models.Exam{
			Title: "Future", JoinCode: "FUTURE", DurationMinutes: 30,
			StartTime: testClock.Add(time.Hour), EndTime: testClock.Add(3 * time.Hour), IsActive: true,
		})
		past := f.addExam(&models.Exam{
			Title: "Past", JoinCode: "PAST00", DurationMinutes: 30,
			StartTime: testClock.Add(-3 * time.Hour), EndTime: testClock.Add(-time.Hour), IsActive: true,
		})
		inactive := f.addExam(&models.Exam{
			Title: "Hidden", JoinCode: "HIDDEN", DurationMinutes: 30,
			StartTime: testClock.Add(-time.Hour), EndTime: testClock.Add(time.Hour), IsActive: false,
		})
		svc := newTestAttemptService(f)

		if _, err := svc.Join(context.Background(), "s", future.ID); !errors.Is(err, ErrExamNotYetOpen) {
			t.Errorf("join before start error = %v, want ErrExamNotYetOpen", err)
		}
		if _, err := svc.Join(context.Background(), "s", past.ID); !errors.Is(err, ErrExamExpired) {
			t.Errorf("join after end error = %v, want ErrExamExpired", err)
		}
		if _, err := svc.Join(context.Background(), "s", inactive.ID); !errors.Is(err, ErrExamNotFound) {
			t.Errorf("join deactivated error = %v, want ErrExamNotFound", err)
		}
	})
}

func TestJoinByCode(t *testing.T) {
	f := newFakeRepository()
	exam := seedExam(f)
	svc := newTestAttemptService(f)

	t.Run("matches case-insensitively", func(t *testing.T) {
		resp, err := svc.JoinByCode(context.Background(), "student-1", "  ab12cd ")
		if err != nil {
			t.Fatalf("JoinByCode() error = %v", err)
		}
		if resp.Exam.ID != exam.ID {
			t.Errorf("resolved exam %d, want %d", resp.Exam.ID, exam.ID)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		if _, err := svc.JoinByCode(context.Background(), "student-1", "ZZZZZZ"); !errors.Is(err, ErrExamNotFound) {
			t.Errorf("JoinByCode() error = %v, want ErrExamNotFound", err)
		}
	})
}

func TestStart(t *testing.T) {
	t.Run("fixes the deadline from the duration", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		svc := newTestAttemptService(f)

		attempt := startAttempt(t, svc, "student-1", exam.ID)
		if attempt.Status != models.AttemptInProgress {
			t.Fatalf("status = %q, want %q", attempt.Status, models.AttemptInProgress)
		}
		wantDeadline := testClock.Add(30 * time.Minute)
		if attempt.EndedAt == nil || !attempt.EndedAt.Equal(wantDeadline) {
			t.Errorf("deadline = %v, want %v", attempt.EndedAt, wantDeadline)
		}
	})

	t.Run("caps the deadline at the exam end", func(t *testing.T) {
		f := newFakeRepository()
		exam := f.addExam(&models.Exam{
			Title: "Closing soon", JoinCode: "SOON01", DurationMinutes: 90,
			StartTime: testClock.Add(-time.Hour), EndTime: testClock.Add(10 * time.Minute), IsActive: true,
		})
		svc := newTestAttemptService(f)

		attempt := startAttempt(t, svc, "student-1", exam.ID)
		if attempt.EndedAt == nil || !attempt.EndedAt.Equal(exam.EndTime) {
			t.Errorf("deadline = %v, want exam end %v", attempt.EndedAt, exam.EndTime)
		}
	})

	t.Run("reconnect returns the running attempt unchanged", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		seedMCQuestion(f, exam, 1)
		svc := newTestAttemptService(f)

		first := startAttempt(t, svc, "student-1", exam.ID)
		resp, err := svc.Start(context.Background(), "student-1", first.ID)
		if err != nil {
			t.Fatalf("second Start() error = %v", err)
		}
		if !resp.ExamAttempt.EndedAt.Equal(*first.EndedAt) {
			t.Errorf("reconnect moved the deadline: %v -> %v", first.EndedAt, resp.ExamAttempt.EndedAt)
		}
		if len(resp.Questions) != 1 {
			t.Errorf("reconnect returned %d questions, want 1", len(resp.Questions))
		}
	})

	t.Run("rejects a completed attempt", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		svc := newTestAttemptService(f)

		attempt := startAttempt(t, svc, "student-1", exam.ID)
		if _, err := svc.Submit(context.Background(), "student-1", attempt.ID, &SubmitAnswersRequest{}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if _, err := svc.Start(context.Background(), "student-1", attempt.ID); !errors.Is(err, ErrAttemptAlreadySubmitted) {
			t.Errorf("Start() error = %v, want ErrAttemptAlreadySubmitted", err)
		}
	})

	t.Run("only the owning student may start", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		svc := newTestAttemptService(f)

		join, err := svc.Join(context.Background(), "student-1", exam.ID)
		if err != nil {
			t.Fatalf("Join() error = %v", err)
		}
		var permErr *PermissionError
		if _, err := svc.Start(context.Background(), "student-2", join.Attempt.ID); !errors.As(err, &permErr) {
			t.Errorf("Start() as another student error = %v, want PermissionError", err)
		}
	})
}

func TestSubmit(t *testing.T) {
	t.Run("grades multiple choice and rounds to one decimal", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		var correctIDs []uint
		for i := 1; i <= 4; i++ {
			_, correctID := seedMCQuestion(f, exam, i)
			correctIDs = append(correctIDs, correctID)
		}
		svc := newTestAttemptService(f)

		attempt := startAttempt(t, svc, "student-1", exam.ID)

		links, _ := f.ExamQuestion().ListByExam(context.Background(), nil, exam.ID)
		req := &SubmitAnswersRequest{}
		for i, link := range links {
			choice := correctIDs[i]
			if i == 3 {
				choice = link.Question.Choices[1].ID // the wrong one
			}
			req.Answers = append(req.Answers, AnswerSubmission{
				QuestionID:       link.QuestionID,
				SelectedChoiceID: uintPtr(choice),
			})
		}

		result, err := svc.Submit(context.Background(), "student-1", attempt.ID, req)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if result.Score == nil || *result.Score != 75.0 {
			t.Errorf("score = %v, want 75.0", result.Score)
		}
		if result.CorrectCount != 3 || result.GradableCount != 4 {
			t.Errorf("correct/gradable = %d/%d, want 3/4", result.CorrectCount, result.GradableCount)
		}
		if result.EndReason != "submitted" {
			t.Errorf("end reason = %q, want %q", result.EndReason, "submitted")
		}
	})

	t.Run("writes one row per exam question including unanswered", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		_, correctID := seedMCQuestion(f, exam, 1)
		seedMCQuestion(f, exam, 2)
		seedEssay(f, exam, 3)
		svc := newTestAttemptService(f)

		attempt := startAttempt(t, svc, "student-1", exam.ID)
		links, _ := f.ExamQuestion().ListByExam(context.Background(), nil, exam.ID)
		req := &SubmitAnswersRequest{Answers: []AnswerSubmission{
			{QuestionID: links[0].QuestionID, SelectedChoiceID: uintPtr(correctID)},
		}}

		result, err := svc.Submit(context.Background(), "student-1", attempt.ID, req)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if len(result.Answers) != 3 {
			t.Fatalf("got %d answer rows, want 3", len(result.Answers))
		}
		unanswered := result.Answers[1]
		if unanswered.SelectedChoiceID != nil || unanswered.AnswerText != nil {
			t.Error("unanswered question carries a response")
		}
		if unanswered.IsCorrect == nil || *unanswered.IsCorrect {
			t.Errorf("unanswered multiple choice IsCorrect = %v, want false", unanswered.IsCorrect)
		}
		essay := result.Answers[2]
		if essay.IsCorrect != nil {
			t.Errorf("essay IsCorrect = %v, want nil (ungraded)", *essay.IsCorrect)
		}
	})

	t.Run("short answers match trimmed and case-insensitive", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		graded := seedShortAnswer(f, exam, 1, strPtr("Photosynthesis"))
		manual := seedShortAnswer(f, exam, 2, nil)
		svc := newTestAttemptService(f)

		attempt := startAttempt(t, svc, "student-1", exam.ID)
		req := &SubmitAnswersRequest{Answers: []AnswerSubmission{
			{QuestionID: graded.ID, AnswerText: strPtr("  PHOTOSYNTHESIS ")},
			{QuestionID: manual.ID, AnswerText: strPtr("some prose")},
		}}

		result, err := svc.Submit(context.Background(), "student-1", attempt.ID, req)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if result.GradableCount != 1 || result.CorrectCount != 1 {
			t.Errorf("correct/gradable = %d/%d, want 1/1", result.CorrectCount, result.GradableCount)
		}
		if result.Score == nil || *result.Score != 100.0 {
			t.Errorf("score = %v, want 100.0", result.Score)
		}
	})

	t.Run("all-manual exam scores zero", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		seedEssay(f, exam, 1)
		seedEssay(f, exam, 2)
		svc := newTestAttemptService(f)

		attempt := startAttempt(t, svc, "student-1", exam.ID)
		result, err := svc.Submit(context.Background(), "student-1", attempt.ID, &SubmitAnswersRequest{})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if result.Score == nil || *result.Score != 0.0 {
			t.Errorf("score = %v, want 0.0", result.Score)
		}
		if result.GradableCount != 0 {
			t.Errorf("gradable = %d, want 0", result.GradableCount)
		}
	})

	t.Run("rejects a choice from another question", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		q1, _ := seedMCQuestion(f, exam, 1)
		_, otherCorrect := seedMCQuestion(f, exam, 2)
		svc := newTestAttemptService(f)

		attempt := startAttempt(t, svc, "student-1", exam.ID)
		req := &SubmitAnswersRequest{Answers: []AnswerSubmission{
			{QuestionID: q1.ID, SelectedChoiceID: uintPtr(otherCorrect)},
		}}

		var verrs ValidationErrors
		if _, err := svc.Submit(context.Background(), "student-1", attempt.ID, req); !errors.As(err, &verrs) {
			t.Fatalf("Submit() error = %v, want ValidationErrors", err)
		}
	})

	t.Run("rejects answers for questions outside the exam", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		seedMCQuestion(f, exam, 1)
		stray := f.addQuestion(&models.Question{Type: models.Essay, Text: "elsewhere", Points: 1})
		svc := newTestAttemptService(f)

		attempt := startAttempt(t, svc, "student-1", exam.ID)
		req := &SubmitAnswersRequest{Answers: []AnswerSubmission{
			{QuestionID: stray.ID, AnswerText: strPtr("x")},
		}}

		var verrs ValidationErrors
		if _, err := svc.Submit(context.Background(), "student-1", attempt.ID, req); !errors.As(err, &verrs) {
			t.Fatalf("Submit() error = %v, want ValidationErrors", err)
		}
	})

	t.Run("requires a started attempt", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		svc := newTestAttemptService(f)

		join, err := svc.Join(context.Background(), "student-1", exam.ID)
		if err != nil {
			t.Fatalf("Join() error = %v", err)
		}
		if _, err := svc.Submit(context.Background(), "student-1", join.Attempt.ID, &SubmitAnswersRequest{}); !errors.Is(err, ErrAttemptNotStarted) {
			t.Errorf("Submit() on registered error = %v, want ErrAttemptNotStarted", err)
		}
	})

	t.Run("rejects a second submission", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		seedMCQuestion(f, exam, 1)
		svc := newTestAttemptService(f)

		attempt := startAttempt(t, svc, "student-1", exam.ID)
		if _, err := svc.Submit(context.Background(), "student-1", attempt.ID, &SubmitAnswersRequest{}); err != nil {
			t.Fatalf("first Submit() error = %v", err)
		}
		if _, err := svc.Submit(context.Background(), "student-1", attempt.ID, &SubmitAnswersRequest{}); !errors.Is(err, ErrAttemptAlreadySubmitted) {
			t.Errorf("second Submit() error = %v, want ErrAttemptAlreadySubmitted", err)
		}
	})

	t.Run("rolls back and stays retriable on insert failure", func(t *testing.T) {
		f := newFakeRepository()
		exam := seedExam(f)
		_, correctID := seedMCQuestion(f, exam, 1)
		svc := newTestAttemptService(f)

		attempt := startAttempt(t, svc, "student-1", exam.ID)
		links, _ := f.ExamQuestion().ListByExam(context.Background(), nil, exam.ID)
		req := &SubmitAnswersRequest{Answers: []AnswerSubmission{
			{QuestionID: links[0].QuestionID, SelectedChoiceID: uintPtr(correctID)},
		}}

		f.failCreateBatch = errors.New("disk full")
		if _, err := svc.Submit(context.Background(), "student-1", attempt.ID, req); !errors.Is(err, ErrSubmissionFailed) {
			t.Fatalf("Submit() error = %v, want ErrSubmissionFailed", err)
		}

		// The failed transaction must leave no answers and an
		// in_progress attempt, so the retry can succeed.
		stored, err := f.Attempt().GetWithAnswers(context.Background(), nil, attempt.ID)
		if err != nil {
			t.Fatalf("reloading attempt: %v", err)
		}
		if stored.Status != models.AttemptInProgress {
			t.Errorf("status after failure = %q, want %q", stored.Status, models.AttemptInProgress)
		}
		if len(stored.Answers) != 0 {
			t.Errorf("found %d answer rows after rollback, want 0", len(stored.Answers))
		}

		result, err := svc.Submit(context.Background(), "student-1", attempt.ID, req)
		if err != nil {
			t.Fatalf("retry Submit() error = %v", err)
		}
		if result.Score == nil || *result.Score != 100.0 {
			t.Errorf("retry score = %v, want 100.0", result.Score)
		}
	})
}

func TestTimeRemaining(t *testing.T) {
	f := newFakeRepository()
	exam := seedExam(f)
	svc := newTestAttemptService(f)

	attempt := startAttempt(t, svc, "student-1", exam.ID)

	t.Run("counts down from the deadline", func(t *testing.T) {
		svc.now = func() time.Time { return testClock.Add(10 * time.Minute) }
		remaining, err := svc.TimeRemaining(context.Background(), "student-1", attempt.ID)
		if err != nil {
			t.Fatalf("TimeRemaining() error = %v", err)
		}
		if remaining != int64((20 * time.Minute).Seconds()) {
			t.Errorf("remaining = %d, want %d", remaining, int64((20*time.Minute).Seconds()))
		}
	})

	t.Run("clamps at zero past the deadline", func(t *testing.T) {
		svc.now = func() time.Time { return testClock.Add(time.Hour) }
		remaining, err := svc.TimeRemaining(context.Background(), "student-1", attempt.ID)
		if err != nil {
			t.Fatalf("TimeRemaining() error = %v", err)
		}
		if remaining != 0 {
			t.Errorf("remaining = %d, want 0", remaining)
		}
	})
}

func TestHandleTimeout(t *testing.T) {
	f := newFakeRepository()
	exam := seedExam(f)
	seedMCQuestion(f, exam, 1)
	svc := newTestAttemptService(f)

	attempt := startAttempt(t, svc, "student-1", exam.ID)

	if err := svc.HandleTimeout(context.Background(), attempt.ID); err != nil {
		t.Fatalf("HandleTimeout() error = %v", err)
	}

	stored, err := f.Attempt().GetWithAnswers(context.Background(), nil, attempt.ID)
	if err != nil {
		t.Fatalf("reloading attempt: %v", err)
	}
	if stored.Status != models.AttemptCompleted {
		t.Errorf("status = %q, want %q", stored.Status, models.AttemptCompleted)
	}
	if stored.EndReason != "timeout" {
		t.Errorf("end reason = %q, want %q", stored.EndReason, "timeout")
	}
	if len(stored.Answers) != 1 {
		t.Errorf("got %d answer rows, want 1 (the unanswered question)", len(stored.Answers))
	}
	if stored.Score == nil || *stored.Score != 0.0 {
		t.Errorf("score = %v, want 0.0", stored.Score)
	}

	// A second timeout is a no-op.
	if err := svc.HandleTimeout(context.Background(), attempt.ID); err != nil {
		t.Errorf("repeated HandleTimeout() error = %v", err)
	}
}

func TestSweepExpired(t *testing.T) {
	f := newFakeRepository()
	exam := seedExam(f)
	seedMCQuestion(f, exam, 1)
	svc := newTestAttemptService(f)

	expired := startAttempt(t, svc, "student-1", exam.ID)
	fresh := startAttempt(t, svc, "student-2", exam.ID)

	// Push only the first attempt past its deadline.
	svc.now = func() time.Time { return testClock.Add(31 * time.Minute) }
	// The second attempt started at the same clock, so reopen its
	// deadline relative to the moved clock.
	stored, _ := f.Attempt().GetByID(context.Background(), nil, fresh.ID)
	later := testClock.Add(time.Hour)
	stored.EndedAt = &later
	if err := f.Attempt().Update(context.Background(), nil, stored); err != nil {
		t.Fatalf("resetting deadline: %v", err)
	}

	count, err := svc.SweepExpired(context.Background(), 10)
	if err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if count != 1 {
		t.Errorf("swept %d attempts, want 1", count)
	}

	first, _ := f.Attempt().GetByID(context.Background(), nil, expired.ID)
	if first.Status != models.AttemptCompleted || first.EndReason != "timeout" {
		t.Errorf("expired attempt = %q/%q, want completed/timeout", first.Status, first.EndReason)
	}
	second, _ := f.Attempt().GetByID(context.Background(), nil, fresh.ID)
	if second.Status != models.AttemptInProgress {
		t.Errorf("fresh attempt status = %q, want %q", second.Status, models.AttemptInProgress)
	}
}

func TestGetResult(t *testing.T) {
	f := newFakeRepository()
	f.addUser("admin-1", models.RoleAdmin)
	exam := seedExam(f)
	_, correctID := seedMCQuestion(f, exam, 1)
	svc := newTestAttemptService(f)

	attempt := startAttempt(t, svc, "student-1", exam.ID)

	t.Run("refuses before completion", func(t *testing.T) {
		if _, err := svc.GetResult(context.Background(), "student-1", attempt.ID); !errors.Is(err, ErrAttemptNotActive) {
			t.Errorf("GetResult() before submit error = %v, want ErrAttemptNotActive", err)
		}
	})

	links, _ := f.ExamQuestion().ListByExam(context.Background(), nil, exam.ID)
	req := &SubmitAnswersRequest{Answers: []AnswerSubmission{
		{QuestionID: links[0].QuestionID, SelectedChoiceID: uintPtr(correctID)},
	}}
	if _, err := svc.Submit(context.Background(), "student-1", attempt.ID, req); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	t.Run("owner, teacher and admin can read it", func(t *testing.T) {
		for _, userID := range []string{"student-1", "teacher-1", "admin-1"} {
			result, err := svc.GetResult(context.Background(), userID, attempt.ID)
			if err != nil {
				t.Fatalf("GetResult() as %s error = %v", userID, err)
			}
			if len(result.Answers) != 1 {
				t.Errorf("as %s: got %d answers, want 1", userID, len(result.Answers))
			}
		}
	})

	t.Run("strangers are refused", func(t *testing.T) {
		var permErr *PermissionError
		if _, err := svc.GetResult(context.Background(), "student-9", attempt.ID); !errors.As(err, &permErr) {
			t.Errorf("GetResult() as stranger error = %v, want PermissionError", err)
		}
	})

	t.Run("reveals the correct choice", func(t *testing.T) {
		result, err := svc.GetResult(context.Background(), "student-1", attempt.ID)
		if err != nil {
			t.Fatalf("GetResult() error = %v", err)
		}
		answer := result.Answers[0]
		if answer.CorrectChoiceID == nil || *answer.CorrectChoiceID != correctID {
			t.Errorf("correct choice = %v, want %d", answer.CorrectChoiceID, correctID)
		}
		if answer.IsCorrect == nil || !*answer.IsCorrect {
			t.Errorf("IsCorrect = %v, want true", answer.IsCorrect)
		}
	})
}
