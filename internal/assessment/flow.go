// Package assessment drives the intake flow: phone verification, the fixed
// base questions and the model-led interview that ends in a merged answer
// map ready for plan generation.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"saska-advisor-go/internal/ai"
	"saska-advisor-go/internal/models"
)

type State string

const (
	StateVerification  State = "verification"
	StateBaseQuestions State = "base_questions"
	StateAIInterview   State = "ai_interview"
	StateComplete      State = "complete"
)

const MaxDynamicQuestions = 5

var (
	ErrBusy           = errors.New("a request is already in flight")
	ErrAnswerRequired = errors.New("answer required")
	ErrInvalidState   = errors.New("operation not allowed in current state")
	ErrAbandoned      = errors.New("assessment was abandoned")
)

var phonePattern = regexp.MustCompile(`^09[0-9]{9}$`)

func ValidPhone(phone string) bool { return phonePattern.MatchString(phone) }

// QuestionSource produces the next dynamic question. Implementations must
// always return a usable question.
type QuestionSource interface {
	NextQuestion(ctx context.Context, history []ai.InterviewStep, baseData string) ai.Question
}

// Result is handed to the completion callback.
type Result struct {
	Answers map[string]string
	Phone   string
}

// Snapshot is a read-only view of the flow for rendering.
type Snapshot struct {
	State       State              `json:"state"`
	Phone       string             `json:"phone"`
	Step        int                `json:"step"`
	Question    *BaseQuestion      `json:"question,omitempty"`
	Answer      string             `json:"answer,omitempty"`
	AIQuestion  *ai.Question       `json:"aiQuestion,omitempty"`
	History     []ai.InterviewStep `json:"history"`
	Busy        bool               `json:"busy"`
	MaxDynamic  int                `json:"maxDynamic"`
	BaseAnswers map[string]string  `json:"baseAnswers"`
}

type Flow struct {
	mu         sync.Mutex
	questions  QuestionSource
	progress   ProgressStore
	onComplete func(Result)
	log        zerolog.Logger

	state    State
	phone    string
	accepted bool
	step     int
	base     map[string]string
	history  []ai.InterviewStep
	current  *ai.Question
	busy     bool
	epoch    uint64
	result   *Result
}

type Option func(*Flow)

// OnComplete registers the callback receiving the merged answers.
func OnComplete(fn func(Result)) Option {
	return func(f *Flow) { f.onComplete = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(f *Flow) { f.log = l }
}

func NewFlow(questions QuestionSource, progress ProgressStore, opts ...Option) *Flow {
	if progress == nil {
		progress = NewMemoryProgress()
	}
	f := &Flow{
		questions: questions,
		progress:  progress,
		log:       zerolog.Nop(),
		state:     StateVerification,
		base:      map[string]string{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Restore reloads the phone number and base answers saved by an earlier run.
func (f *Flow) Restore(ctx context.Context) error {
	phone, err := f.progress.LoadPhone(ctx)
	if err != nil {
		return err
	}
	base, err := f.progress.LoadBaseAnswers(ctx)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.phone = phone
	f.base = map[string]string{}
	for _, q := range BaseQuestions {
		if v, ok := base[q.Key()]; ok {
			f.base[q.Key()] = v
		}
	}
	return nil
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := Snapshot{
		State:       f.state,
		Phone:       f.phone,
		Step:        f.step,
		History:     slices.Clone(f.history),
		Busy:        f.busy,
		MaxDynamic:  MaxDynamicQuestions,
		BaseAnswers: copyMap(f.base),
	}
	if f.state == StateBaseQuestions {
		q := BaseQuestions[f.step]
		s.Question = &q
		s.Answer = f.base[q.Key()]
	}
	if f.current != nil {
		q := *f.current
		s.AIQuestion = &q
	}
	return s
}

func (f *Flow) SetPhone(phone string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phone = strings.TrimSpace(phone)
}

func (f *Flow) AcceptTerms(accepted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted = accepted
}

// Start leaves verification once the phone is valid and the terms are
// accepted. On failure the state is unchanged.
func (f *Flow) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.state != StateVerification {
		f.mu.Unlock()
		return ErrInvalidState
	}
	if !ValidPhone(f.phone) {
		f.mu.Unlock()
		return fmt.Errorf("%w: phone number must be 11 digits starting with 09", models.ErrValidation)
	}
	if !f.accepted {
		f.mu.Unlock()
		return fmt.Errorf("%w: terms must be accepted", models.ErrValidation)
	}
	phone := f.phone
	f.mu.Unlock()

	if err := f.progress.SavePhone(ctx, phone); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateVerification {
		f.state = StateBaseQuestions
		f.step = 0
	}
	return nil
}

// Answer records the answer of the current base question.
func (f *Flow) Answer(ctx context.Context, value string) error {
	f.mu.Lock()
	if f.state != StateBaseQuestions {
		f.mu.Unlock()
		return ErrInvalidState
	}
	q := BaseQuestions[f.step]
	value = strings.TrimSpace(value)
	if err := validateAnswer(q, value); err != nil {
		f.mu.Unlock()
		return err
	}
	f.base[q.Key()] = value
	snapshot := copyMap(f.base)
	f.mu.Unlock()

	return f.progress.SaveBaseAnswers(ctx, snapshot)
}

func validateAnswer(q BaseQuestion, value string) error {
	if value == "" {
		return nil
	}
	switch q.Type {
	case TypeNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: %q expects a positive number", models.ErrValidation, q.Text)
		}
	case TypeSelect:
		if len(q.Options) > 0 && !slices.Contains(q.Options, value) {
			return fmt.Errorf("%w: %q is not one of the options", models.ErrValidation, value)
		}
	}
	return nil
}

// Next advances through the base questions. Leaving the last one enters the
// interview and fetches the first dynamic question.
func (f *Flow) Next(ctx context.Context) error {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return ErrBusy
	}
	if f.state != StateBaseQuestions {
		f.mu.Unlock()
		return ErrInvalidState
	}
	q := BaseQuestions[f.step]
	if f.base[q.Key()] == "" {
		f.mu.Unlock()
		return ErrAnswerRequired
	}
	if f.step < len(BaseQuestions)-1 {
		f.step++
		f.mu.Unlock()
		return nil
	}

	f.state = StateAIInterview
	f.history = nil
	f.current = nil
	return f.fetchQuestionLocked(ctx)
}

// Back steps to the previous base question, or to verification from the
// first one.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateBaseQuestions {
		return ErrInvalidState
	}
	if f.busy {
		return ErrBusy
	}
	if f.step == 0 {
		f.state = StateVerification
		return nil
	}
	f.step--
	return nil
}

// SubmitAnswer answers the current dynamic question. After
// MaxDynamicQuestions exchanges the flow completes.
func (f *Flow) SubmitAnswer(ctx context.Context, answer string) error {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return ErrBusy
	}
	if f.state != StateAIInterview {
		f.mu.Unlock()
		return ErrInvalidState
	}
	answer = strings.TrimSpace(answer)
	if answer == "" || f.current == nil {
		f.mu.Unlock()
		return ErrAnswerRequired
	}

	f.history = append(f.history, ai.InterviewStep{
		ID:       fmt.Sprintf("ai_%d", len(f.history)),
		Question: f.current.Text,
		Answer:   answer,
	})
	f.current = nil

	if len(f.history) >= MaxDynamicQuestions {
		res := f.completeLocked()
		cb := f.onComplete
		f.mu.Unlock()
		if cb != nil {
			cb(res)
		}
		return nil
	}
	return f.fetchQuestionLocked(ctx)
}

// fetchQuestionLocked is entered with f.mu held and releases it.
func (f *Flow) fetchQuestionLocked(ctx context.Context) error {
	f.busy = true
	epoch := f.epoch
	history := slices.Clone(f.history)
	baseData := BaseData(f.base)
	f.mu.Unlock()

	q := f.questions.NextQuestion(ctx, history, baseData)
	if f.isDuplicate(q, history) {
		f.log.Debug().Str("question", q.Text).Msg("duplicate dynamic question, asking again")
		q = f.questions.NextQuestion(ctx, history, baseData)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return ErrAbandoned
	}
	f.busy = false
	f.current = &q
	return nil
}

func (f *Flow) isDuplicate(q ai.Question, history []ai.InterviewStep) bool {
	text := normalize(q.Text)
	if text == "" {
		return false
	}
	for _, b := range BaseQuestions {
		if normalize(b.Text) == text {
			return true
		}
	}
	for _, h := range history {
		if normalize(h.Question) == text {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (f *Flow) completeLocked() Result {
	merged := copyMap(f.base)
	for i, step := range f.history {
		merged[DynamicKey(i)] = step.Question + " -> " + step.Answer
	}
	f.state = StateComplete
	res := Result{Answers: merged, Phone: f.phone}
	f.result = &res
	return res
}

// Result returns the merged answers once the flow is complete.
func (f *Flow) Result() (Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result == nil {
		return Result{}, false
	}
	return Result{Answers: copyMap(f.result.Answers), Phone: f.result.Phone}, true
}

// Abandon returns to verification. Responses to requests issued before the
// call are discarded when they arrive. Saved progress is kept for resume.
func (f *Flow) Abandon() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.epoch++
	f.state = StateVerification
	f.step = 0
	f.history = nil
	f.current = nil
	f.busy = false
	f.result = nil
	f.accepted = false
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
