package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
)

type reportService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewReportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ReportService {
	return &reportService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

func (s *reportService) ExamSummary(ctx context.Context, teacherID string, examID uint) (*ExamSummaryResponse, error) {
	exam, err := s.getOwnedExam(ctx, teacherID, examID, "view summary of")
	if err != nil {
		return nil, err
	}

	stats, err := s.repo.Exam().GetStats(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exam stats: %w", err)
	}

	questionStats, err := s.repo.Answer().QuestionStats(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to load question stats: %w", err)
	}

	pending, err := s.repo.Answer().CountPendingManual(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending grades: %w", err)
	}

	return &ExamSummaryResponse{
		Exam:          exam,
		Stats:         stats,
		QuestionStats: questionStats,
		PendingManual: pending,
	}, nil
}

func (s *reportService) ExportResults(ctx context.Context, teacherID string, examID uint) ([]byte, string, error) {
	exam, err := s.getOwnedExam(ctx, teacherID, examID, "export results of")
	if err != nil {
		return nil, "", err
	}

	attempts, err := s.loadAllAttempts(ctx, examID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load attempts: %w", err)
	}

	questionStats, err := s.repo.Answer().QuestionStats(ctx, nil, examID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load question stats: %w", err)
	}

	users, err := s.loadStudentNames(ctx, attempts)
	if err != nil {
		s.logger.Warn("failed to resolve student names for export", "exam_id", examID, "error", err)
		users = map[string]*models.User{}
	}

	f := excelize.NewFile()
	defer f.Close()

	const resultsSheet = "Results"
	f.SetSheetName(f.GetSheetName(0), resultsSheet)

	headers := []string{"Student", "Email", "Status", "Registered At", "Started At", "Completed At", "Score", "Correct", "Gradable", "End Reason"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(resultsSheet, cell, h)
	}

	for row, attempt := range attempts {
		values := []interface{}{
			studentLabel(users, attempt.StudentID),
			studentEmail(users, attempt.StudentID),
			string(attempt.Status),
			formatTime(&attempt.RegisteredAt),
			formatTime(attempt.StartedAt),
			formatTime(attempt.CompletedAt),
			formatScore(attempt.Score),
			attempt.CorrectCount,
			attempt.GradableCount,
			attempt.EndReason,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(resultsSheet, cell, v)
		}
	}
	f.SetColWidth(resultsSheet, "A", "B", 28)
	f.SetColWidth(resultsSheet, "C", "F", 20)

	const questionsSheet = "Questions"
	if _, err := f.NewSheet(questionsSheet); err == nil {
		qHeaders := []string{"Question ID", "Question", "Type", "Answered", "Correct", "Correct %"}
		for i, h := range qHeaders {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(questionsSheet, cell, h)
		}
		for row, stat := range questionStats {
			pct := 0.0
			if stat.Answered > 0 {
				pct = float64(stat.Correct) / float64(stat.Answered) * 100
			}
			values := []interface{}{stat.QuestionID, stat.Text, string(stat.Type), stat.Answered, stat.Correct, fmt.Sprintf("%.1f", pct)}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
				f.SetCellValue(questionsSheet, cell, v)
			}
		}
		f.SetColWidth(questionsSheet, "B", "B", 60)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to render workbook: %w", err)
	}

	filename := fmt.Sprintf("%s-results-%s.xlsx", slugify(exam.Title), time.Now().UTC().Format("20060102"))
	s.logger.Info("exam results exported", "exam_id", examID, "attempts", len(attempts), "filename", filename)

	return buf.Bytes(), filename, nil
}

func (s *reportService) getOwnedExam(ctx context.Context, teacherID string, examID uint, action string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	if exam.CreatedBy != teacherID {
		isAdmin, roleErr := s.repo.User().HasRole(ctx, teacherID, models.RoleAdmin)
		if roleErr != nil || !isAdmin {
			return nil, NewPermissionError(teacherID, action, fmt.Sprintf("exam %d", examID))
		}
	}
	return exam, nil
}

// loadAllAttempts pages through the attempt list so large exams export
// completely.
func (s *reportService) loadAllAttempts(ctx context.Context, examID uint) ([]*models.ExamAttempt, error) {
	const pageSize = 100

	var all []*models.ExamAttempt
	for offset := 0; ; offset += pageSize {
		page, total, err := s.repo.Attempt().List(ctx, nil, repositories.AttemptFilters{
			ExamID: &examID,
			Limit:  pageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize || int64(len(all)) >= total {
			break
		}
	}
	return all, nil
}

func (s *reportService) loadStudentNames(ctx context.Context, attempts []*models.ExamAttempt) (map[string]*models.User, error) {
	ids := make([]string, 0, len(attempts))
	seen := make(map[string]bool, len(attempts))
	for _, attempt := range attempts {
		if !seen[attempt.StudentID] {
			seen[attempt.StudentID] = true
			ids = append(ids, attempt.StudentID)
		}
	}
	if len(ids) == 0 {
		return map[string]*models.User{}, nil
	}

	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

func studentLabel(users map[string]*models.User, studentID string) string {
	if u, ok := users[studentID]; ok && u != nil {
		if u.DisplayName != "" {
			return u.DisplayName
		}
		if u.Name != "" {
			return u.Name
		}
	}
	return studentID
}

func studentEmail(users map[string]*models.User, studentID string) string {
	if u, ok := users[studentID]; ok && u != nil {
		return u.Email
	}
	return ""
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func formatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return fmt.Sprintf("%.1f", *score)
}

func slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "exam"
	}
	if len(slug) > 40 {
		slug = slug[:40]
	}
	return slug
}
