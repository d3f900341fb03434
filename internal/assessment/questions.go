package assessment

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"saska-advisor-go/internal/models"
)

type QuestionType string

const (
	TypeSelect QuestionType = "select"
	TypeNumber QuestionType = "number"
)

type BaseQuestion struct {
	ID      int          `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
}

// Key is the answer map key of the question.
func (q BaseQuestion) Key() string { return strconv.Itoa(q.ID) }

const (
	QuestionGender = 1
	QuestionAge    = 2
	QuestionHeight = 3
	QuestionWeight = 4
	QuestionGoal   = 5
)

// BaseQuestions are the fixed intake questions; everything else is asked by
// the model.
var BaseQuestions = []BaseQuestion{
	{ID: QuestionGender, Text: "جنسیت بیولوژیک شما؟", Type: TypeSelect, Options: []string{"مرد", "زن"}},
	{ID: QuestionAge, Text: "سن دقیق (سال):", Type: TypeNumber},
	{ID: QuestionHeight, Text: "قد (سانتی‌متر):", Type: TypeNumber},
	{ID: QuestionWeight, Text: "وزن فعلی (کیلوگرم):", Type: TypeNumber},
	{ID: QuestionGoal, Text: "هدف نهایی شما چیست؟", Type: TypeSelect, Options: []string{
		"کاهش چربی و کات", "افزایش حجم عضلانی", "افزایش قدرت بدنی", "حفظ تناسب اندام",
	}},
}

func baseQuestionByKey(key string) (BaseQuestion, bool) {
	for _, q := range BaseQuestions {
		if q.Key() == key {
			return q, true
		}
	}
	return BaseQuestion{}, false
}

// DynamicKey is the merged answer key of the i-th dynamic exchange.
func DynamicKey(i int) string { return fmt.Sprintf("ai_q_%d", i) }

// BaseData renders the base answers as "question: answer" lines for prompts.
func BaseData(answers map[string]string) string {
	lines := make([]string, 0, len(BaseQuestions))
	for _, q := range BaseQuestions {
		lines = append(lines, q.Text+": "+answers[q.Key()])
	}
	return strings.Join(lines, "\n")
}

// Transcript serializes a merged answer map into the text blob sent for plan
// generation. Base questions come first in their fixed order, then dynamic
// exchanges in the order they were asked, then anything else sorted by key.
func Transcript(answers map[string]string) string {
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		text := "Question " + k
		if q, ok := baseQuestionByKey(k); ok {
			text = q.Text
		}
		lines = append(lines, text+": "+answers[k])
	}
	return strings.Join(lines, "\n")
}

func keyRank(k string) (int, int) {
	if n, err := strconv.Atoi(k); err == nil {
		return 0, n
	}
	if rest, ok := strings.CutPrefix(k, "ai_q_"); ok {
		if n, err := strconv.Atoi(rest); err == nil {
			return 1, n
		}
	}
	return 2, 0
}

func keyLess(a, b string) bool {
	ga, na := keyRank(a)
	gb, nb := keyRank(b)
	if ga != gb {
		return ga < gb
	}
	if na != nb {
		return na < nb
	}
	return a < b
}

// UserDataFromAnswers extracts biometrics from the base answers. Unparseable
// numbers are left at zero.
func UserDataFromAnswers(answers map[string]string) models.UserData {
	num := func(id int) float64 {
		v, _ := strconv.ParseFloat(strings.TrimSpace(answers[strconv.Itoa(id)]), 64)
		return v
	}
	return models.UserData{
		Weight: num(QuestionWeight),
		Height: num(QuestionHeight),
		Age:    num(QuestionAge),
		Gender: answers[strconv.Itoa(QuestionGender)],
	}
}

func GoalFromAnswers(answers map[string]string) string {
	return answers[strconv.Itoa(QuestionGoal)]
}
