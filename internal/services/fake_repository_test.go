package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
)

// fakeRepository is an in-memory Repository for service tests. It
// mirrors the behaviors the services depend on: the unique index on
// (exam_id, student_id), compare-and-swap status updates, and
// transaction rollback on error.
type fakeRepository struct {
	mu sync.Mutex

	exams     map[uint]*models.Exam
	questions map[uint]*models.Question
	links     map[uint]*models.ExamQuestion
	attempts  map[uint]*models.ExamAttempt
	answers   map[uint]*models.Answer
	users     map[string]*models.User

	nextExamID    uint
	nextQuestion  uint
	nextChoiceID  uint
	nextLinkID    uint
	nextAttemptID uint
	nextAnswerID  uint

	// failCreateBatch makes the next CreateBatch fail once, simulating
	// a mid-transaction insert error.
	failCreateBatch error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		exams:     make(map[uint]*models.Exam),
		questions: make(map[uint]*models.Question),
		links:     make(map[uint]*models.ExamQuestion),
		attempts:  make(map[uint]*models.ExamAttempt),
		answers:   make(map[uint]*models.Answer),
		users:     make(map[string]*models.User),
	}
}

func (f *fakeRepository) Exam() repositories.ExamRepository                 { return &fakeExamRepo{f} }
func (f *fakeRepository) Question() repositories.QuestionRepository         { return &fakeQuestionRepo{f} }
func (f *fakeRepository) ExamQuestion() repositories.ExamQuestionRepository { return &fakeLinkRepo{f} }
func (f *fakeRepository) Attempt() repositories.AttemptRepository           { return &fakeAttemptRepo{f} }
func (f *fakeRepository) Answer() repositories.AnswerRepository             { return &fakeAnswerRepo{f} }
func (f *fakeRepository) User() repositories.UserRepository                 { return &fakeUserRepo{f} }

// WithTransaction snapshots the mutable tables and restores them when
// fn fails, emulating a rollback.
func (f *fakeRepository) WithTransaction(ctx context.Context, fn func(repo repositories.Repository) error) error {
	f.mu.Lock()
	attemptsBackup := make(map[uint]*models.ExamAttempt, len(f.attempts))
	for id, a := range f.attempts {
		cp := *a
		attemptsBackup[id] = &cp
	}
	answersBackup := make(map[uint]*models.Answer, len(f.answers))
	for id, a := range f.answers {
		cp := *a
		answersBackup[id] = &cp
	}
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.attempts = attemptsBackup
		f.answers = answersBackup
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeRepository) Ping(ctx context.Context) error { return nil }
func (f *fakeRepository) Close() error                   { return nil }

// ----- test data helpers -----

func (f *fakeRepository) addUser(id string, role models.UserRole) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &models.User{ID: id, Name: id, Email: id + "@test.local", Role: role, IsActive: true}
}

func (f *fakeRepository) addExam(exam *models.Exam) *models.Exam {
	f.mu.Lock()
	defer f.mu.Unlock()
	if exam.ID == 0 {
		f.nextExamID++
		exam.ID = f.nextExamID
	} else if exam.ID > f.nextExamID {
		f.nextExamID = exam.ID
	}
	cp := *exam
	f.exams[exam.ID] = &cp
	return exam
}

func (f *fakeRepository) addQuestion(q *models.Question) *models.Question {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.storeQuestionLocked(q)
	return q
}

func (f *fakeRepository) storeQuestionLocked(q *models.Question) {
	if q.ID == 0 {
		f.nextQuestion++
		q.ID = f.nextQuestion
	} else if q.ID > f.nextQuestion {
		f.nextQuestion = q.ID
	}
	for i := range q.Choices {
		if q.Choices[i].ID == 0 {
			f.nextChoiceID++
			q.Choices[i].ID = f.nextChoiceID
		} else if q.Choices[i].ID > f.nextChoiceID {
			f.nextChoiceID = q.Choices[i].ID
		}
		q.Choices[i].QuestionID = q.ID
	}
	cp := *q
	cp.Choices = append([]models.Choice(nil), q.Choices...)
	f.questions[q.ID] = &cp
}

func (f *fakeRepository) addLink(examID, questionID uint, order int, points *int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextLinkID++
	f.links[f.nextLinkID] = &models.ExamQuestion{
		ID:         f.nextLinkID,
		ExamID:     examID,
		QuestionID: questionID,
		Order:      order,
		Points:     points,
	}
}

func (f *fakeRepository) questionCopyLocked(id uint) *models.Question {
	q, ok := f.questions[id]
	if !ok {
		return nil
	}
	cp := *q
	cp.Choices = append([]models.Choice(nil), q.Choices...)
	return &cp
}

// ----- exams -----

type fakeExamRepo struct{ f *fakeRepository }

func (r *fakeExamRepo) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	r.f.addExam(exam)
	return nil
}

func (r *fakeExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	exam, ok := r.f.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *exam
	return &cp, nil
}

func (r *fakeExamRepo) GetWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *fakeExamRepo) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.exams[exam.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *exam
	r.f.exams[exam.ID] = &cp
	return nil
}

func (r *fakeExamRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.exams[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.f.exams, id)
	return nil
}

func (r *fakeExamRepo) SetActive(ctx context.Context, tx *gorm.DB, id uint, active bool) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	exam, ok := r.f.exams[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	exam.IsActive = active
	return nil
}

func (r *fakeExamRepo) GetByJoinCode(ctx context.Context, tx *gorm.DB, code string) (*models.Exam, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	normalized := strings.ToUpper(strings.TrimSpace(code))
	for _, exam := range r.f.exams {
		if exam.IsActive && strings.EqualFold(exam.JoinCode, normalized) {
			cp := *exam
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeExamRepo) JoinCodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	normalized := strings.ToUpper(strings.TrimSpace(code))
	for _, exam := range r.f.exams {
		if strings.EqualFold(exam.JoinCode, normalized) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeExamRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Exam
	for _, exam := range r.f.exams {
		if filters.CreatedBy != nil && exam.CreatedBy != *filters.CreatedBy {
			continue
		}
		if filters.IsActive != nil && exam.IsActive != *filters.IsActive {
			continue
		}
		if filters.OpenAt != nil && !exam.IsOpen(*filters.OpenAt) {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(exam.Title), strings.ToLower(filters.Search)) {
			continue
		}
		cp := *exam
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *fakeExamRepo) GetStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.ExamStats, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	stats := &repositories.ExamStats{}
	var scoreSum float64
	var scored int64
	for _, attempt := range r.f.attempts {
		if attempt.ExamID != examID {
			continue
		}
		stats.TotalAttempts++
		switch attempt.Status {
		case models.AttemptRegistered:
			stats.Registered++
		case models.AttemptInProgress:
			stats.InProgress++
		case models.AttemptCompleted:
			stats.Completed++
			if attempt.Score != nil {
				scoreSum += *attempt.Score
				scored++
			}
		}
	}
	if scored > 0 {
		stats.AverageScore = scoreSum / float64(scored)
	}
	return stats, nil
}

// ----- questions -----

type fakeQuestionRepo struct{ f *fakeRepository }

func (r *fakeQuestionRepo) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.storeQuestionLocked(question)
	return nil
}

func (r *fakeQuestionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	q := r.f.questionCopyLocked(id)
	if q == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return q, nil
}

func (r *fakeQuestionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Question
	for _, id := range ids {
		if q := r.f.questionCopyLocked(id); q != nil {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *fakeQuestionRepo) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	stored, ok := r.f.questions[question.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	choices := stored.Choices
	cp := *question
	cp.Choices = choices
	r.f.questions[question.ID] = &cp
	return nil
}

func (r *fakeQuestionRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.questions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.f.questions, id)
	return nil
}

func (r *fakeQuestionRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Question
	for id := range r.f.questions {
		q := r.f.questionCopyLocked(id)
		if filters.CreatedBy != nil && q.CreatedBy != *filters.CreatedBy {
			continue
		}
		if filters.Type != nil && q.Type != *filters.Type {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(q.Text), strings.ToLower(filters.Search)) {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *fakeQuestionRepo) ReplaceChoices(ctx context.Context, tx *gorm.DB, questionID uint, choices []models.Choice) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	q, ok := r.f.questions[questionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	q.Choices = nil
	for _, choice := range choices {
		r.f.nextChoiceID++
		choice.ID = r.f.nextChoiceID
		choice.QuestionID = questionID
		q.Choices = append(q.Choices, choice)
	}
	return nil
}

func (r *fakeQuestionRepo) IsLinkedToExam(ctx context.Context, tx *gorm.DB, questionID uint) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, link := range r.f.links {
		if link.QuestionID == questionID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeQuestionRepo) HasSubmittedAnswers(ctx context.Context, tx *gorm.DB, questionID uint) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, answer := range r.f.answers {
		if answer.QuestionID != questionID {
			continue
		}
		attempt, ok := r.f.attempts[answer.AttemptID]
		if ok && attempt.Status == models.AttemptCompleted {
			return true, nil
		}
	}
	return false, nil
}

// ----- exam questions -----

type fakeLinkRepo struct{ f *fakeRepository }

func (r *fakeLinkRepo) Add(ctx context.Context, tx *gorm.DB, link *models.ExamQuestion) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, existing := range r.f.links {
		if existing.ExamID == link.ExamID && existing.QuestionID == link.QuestionID {
			return gorm.ErrDuplicatedKey
		}
	}
	r.f.nextLinkID++
	link.ID = r.f.nextLinkID
	cp := *link
	cp.Question = nil
	r.f.links[link.ID] = &cp
	return nil
}

func (r *fakeLinkRepo) Remove(ctx context.Context, tx *gorm.DB, examID, questionID uint) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for id, link := range r.f.links {
		if link.ExamID == examID && link.QuestionID == questionID {
			delete(r.f.links, id)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeLinkRepo) Exists(ctx context.Context, tx *gorm.DB, examID, questionID uint) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, link := range r.f.links {
		if link.ExamID == examID && link.QuestionID == questionID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeLinkRepo) ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.ExamQuestion
	for _, link := range r.f.links {
		if link.ExamID != examID {
			continue
		}
		cp := *link
		cp.Question = r.f.questionCopyLocked(link.QuestionID)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r *fakeLinkRepo) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	links, _ := r.ListByExam(ctx, tx, examID)
	return int64(len(links)), nil
}

func (r *fakeLinkRepo) NextOrder(ctx context.Context, tx *gorm.DB, examID uint) (int, error) {
	links, _ := r.ListByExam(ctx, tx, examID)
	maxOrder := 0
	for _, link := range links {
		if link.Order > maxOrder {
			maxOrder = link.Order
		}
	}
	return maxOrder + 1, nil
}

// ----- attempts -----

type fakeAttemptRepo struct{ f *fakeRepository }

func (r *fakeAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, existing := range r.f.attempts {
		if existing.ExamID == attempt.ExamID && existing.StudentID == attempt.StudentID {
			return gorm.ErrDuplicatedKey
		}
	}
	r.f.nextAttemptID++
	attempt.ID = r.f.nextAttemptID
	cp := *attempt
	cp.Exam = nil
	cp.Answers = nil
	r.f.attempts[attempt.ID] = &cp
	return nil
}

func (r *fakeAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	attempt, ok := r.f.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *attempt
	if exam, ok := r.f.exams[attempt.ExamID]; ok {
		examCopy := *exam
		cp.Exam = &examCopy
	}
	return &cp, nil
}

func (r *fakeAttemptRepo) GetWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	attempt, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var answers []models.Answer
	for _, answer := range r.f.answers {
		if answer.AttemptID != id {
			continue
		}
		cp := *answer
		cp.Question = r.f.questionCopyLocked(answer.QuestionID)
		answers = append(answers, cp)
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].ID < answers[j].ID })
	attempt.Answers = answers
	return attempt, nil
}

func (r *fakeAttemptRepo) GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.ExamAttempt, error) {
	r.f.mu.Lock()
	var found uint
	for id, attempt := range r.f.attempts {
		if attempt.ExamID == examID && attempt.StudentID == studentID {
			found = id
			break
		}
	}
	r.f.mu.Unlock()
	if found == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, tx, found)
}

func (r *fakeAttemptRepo) Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.attempts[attempt.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *attempt
	cp.Exam = nil
	cp.Answers = nil
	r.f.attempts[attempt.ID] = &cp
	return nil
}

func (r *fakeAttemptRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.AttemptStatus) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	attempt, ok := r.f.attempts[id]
	if !ok || attempt.Status != from {
		return gorm.ErrRecordNotFound
	}
	attempt.Status = to
	return nil
}

func (r *fakeAttemptRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.ExamAttempt
	for _, attempt := range r.f.attempts {
		if filters.ExamID != nil && attempt.ExamID != *filters.ExamID {
			continue
		}
		if filters.StudentID != nil && attempt.StudentID != *filters.StudentID {
			continue
		}
		if filters.Status != nil && attempt.Status != *filters.Status {
			continue
		}
		cp := *attempt
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	if filters.Offset > 0 {
		if filters.Offset >= len(out) {
			out = nil
		} else {
			out = out[filters.Offset:]
		}
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

func (r *fakeAttemptRepo) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var count int64
	for _, attempt := range r.f.attempts {
		if attempt.ExamID == examID {
			count++
		}
	}
	return count, nil
}

func (r *fakeAttemptRepo) ListExpired(ctx context.Context, tx *gorm.DB, before time.Time, limit int) ([]*models.ExamAttempt, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.ExamAttempt
	for _, attempt := range r.f.attempts {
		if attempt.Status != models.AttemptInProgress || attempt.EndedAt == nil || !attempt.EndedAt.Before(before) {
			continue
		}
		cp := *attempt
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ----- answers -----

type fakeAnswerRepo struct{ f *fakeRepository }

func (r *fakeAnswerRepo) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.failCreateBatch != nil {
		err := r.f.failCreateBatch
		r.f.failCreateBatch = nil
		return err
	}
	for _, answer := range answers {
		r.f.nextAnswerID++
		answer.ID = r.f.nextAnswerID
		cp := *answer
		cp.Question = nil
		r.f.answers[answer.ID] = &cp
	}
	return nil
}

func (r *fakeAnswerRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	answer, ok := r.f.answers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *answer
	cp.Question = r.f.questionCopyLocked(answer.QuestionID)
	return &cp, nil
}

func (r *fakeAnswerRepo) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Answer
	for _, answer := range r.f.answers {
		if answer.AttemptID != attemptID {
			continue
		}
		cp := *answer
		cp.Question = r.f.questionCopyLocked(answer.QuestionID)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeAnswerRepo) Update(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.answers[answer.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *answer
	cp.Question = nil
	r.f.answers[answer.ID] = &cp
	return nil
}

func (r *fakeAnswerRepo) DeleteByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for id, answer := range r.f.answers {
		if answer.AttemptID == attemptID {
			delete(r.f.answers, id)
		}
	}
	return nil
}

func (r *fakeAnswerRepo) CountPendingManual(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var count int64
	for _, answer := range r.f.answers {
		attempt, ok := r.f.attempts[answer.AttemptID]
		if !ok || attempt.ExamID != examID || attempt.Status != models.AttemptCompleted {
			continue
		}
		if answer.IsCorrect == nil && answer.GradedBy == nil && answer.IsAnswered() {
			count++
		}
	}
	return count, nil
}

func (r *fakeAnswerRepo) QuestionStats(ctx context.Context, tx *gorm.DB, examID uint) ([]repositories.QuestionStat, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	byQuestion := make(map[uint]*repositories.QuestionStat)
	for _, answer := range r.f.answers {
		attempt, ok := r.f.attempts[answer.AttemptID]
		if !ok || attempt.ExamID != examID {
			continue
		}
		stat, ok := byQuestion[answer.QuestionID]
		if !ok {
			stat = &repositories.QuestionStat{QuestionID: answer.QuestionID}
			if q := r.f.questions[answer.QuestionID]; q != nil {
				stat.Text = q.Text
				stat.Type = q.Type
			}
			byQuestion[answer.QuestionID] = stat
		}
		if answer.IsAnswered() {
			stat.Answered++
		}
		if answer.IsCorrect != nil && *answer.IsCorrect {
			stat.Correct++
		}
	}
	var out []repositories.QuestionStat
	for _, stat := range byQuestion {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

// ----- users -----

type fakeUserRepo struct{ f *fakeRepository }

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	user, ok := r.f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, user := range r.f.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.User
	for _, id := range ids {
		if user, ok := r.f.users[id]; ok {
			cp := *user
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.User
	for _, user := range r.f.users {
		if filters.Query != "" &&
			!strings.Contains(strings.ToLower(user.Name), strings.ToLower(filters.Query)) &&
			!strings.Contains(strings.ToLower(user.Email), strings.ToLower(filters.Query)) {
			continue
		}
		cp := *user
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	_, ok := r.f.users[id]
	return ok, nil
}

func (r *fakeUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	user, ok := r.f.users[id]
	if !ok {
		return false, nil
	}
	return user.Role == role, nil
}
