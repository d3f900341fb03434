package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"saska-advisor-go/internal/assessment"
	"saska-advisor-go/internal/models"
)

// errQuit ends the assessment early; saved progress is kept for the next run.
var errQuit = errors.New("quit")

// Assess walks the flow screen by screen until a plan is shown. Typing "q"
// at any prompt stops and keeps the progress for the next run.
func (a *App) Assess(ctx context.Context) error {
	flow := assessment.NewFlow(a.api, a.state.Progress(), assessment.WithLogger(a.log))
	if err := flow.Restore(ctx); err != nil {
		return err
	}

	for {
		var err error
		switch flow.State() {
		case assessment.StateVerification:
			err = a.verificationScreen(ctx, flow)
		case assessment.StateBaseQuestions:
			err = a.baseQuestionScreen(ctx, flow)
		case assessment.StateAIInterview:
			err = a.interviewScreen(ctx, flow)
		case assessment.StateComplete:
			done, ferr := a.resultScreen(ctx, flow)
			if done || ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, errQuit) {
			fmt.Fprintln(a.out, "Progress saved. Run `saska assess` to continue.")
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (a *App) ask(text string) (string, error) {
	ans, err := prompt(a.in, a.out, text)
	if errors.Is(err, io.EOF) {
		return "", errQuit
	}
	if err != nil {
		return "", err
	}
	if ans == "q" {
		return "", errQuit
	}
	return ans, nil
}

func (a *App) verificationScreen(ctx context.Context, flow *assessment.Flow) error {
	snap := flow.Snapshot()
	label := "Mobile number (09xxxxxxxxx)"
	if snap.Phone != "" {
		label += " [" + snap.Phone + "]"
	}
	phone, err := a.ask(label)
	if err != nil {
		return err
	}
	if phone == "" {
		phone = snap.Phone
	}
	flow.SetPhone(phone)

	accepted, err := confirm(a.in, a.out, "I accept the terms and understand this is not medical advice")
	if err != nil {
		return err
	}
	flow.AcceptTerms(accepted)

	if err := flow.Start(ctx); err != nil {
		if errors.Is(err, models.ErrValidation) {
			fmt.Fprintln(a.out, validationText(err))
			return nil
		}
		return err
	}
	return nil
}

func (a *App) baseQuestionScreen(ctx context.Context, flow *assessment.Flow) error {
	snap := flow.Snapshot()
	q := snap.Question
	fmt.Fprintf(a.out, "\n[%d/%d] %s\n", snap.Step+1, len(assessment.BaseQuestions), q.Text)
	printOptions(a.out, q.Options)

	label := "answer (b = back, q = quit)"
	if snap.Answer != "" {
		label += " [" + snap.Answer + "]"
	}
	input, err := a.ask(label)
	if err != nil {
		return err
	}
	if input == "b" {
		return flow.Back()
	}
	if input != "" {
		if err := flow.Answer(ctx, pickOption(q.Options, input)); err != nil {
			if errors.Is(err, models.ErrValidation) {
				fmt.Fprintln(a.out, validationText(err))
				return nil
			}
			return err
		}
	}

	if snap.Step == len(assessment.BaseQuestions)-1 {
		fmt.Fprintln(a.out, "Preparing your personal interview...")
	}
	err = flow.Next(ctx)
	if errors.Is(err, assessment.ErrAnswerRequired) {
		fmt.Fprintln(a.out, "Please answer before continuing.")
		return nil
	}
	return err
}

func (a *App) interviewScreen(ctx context.Context, flow *assessment.Flow) error {
	snap := flow.Snapshot()
	if snap.AIQuestion == nil {
		return fmt.Errorf("interview has no current question")
	}
	q := snap.AIQuestion
	fmt.Fprintf(a.out, "\n[AI %d/%d] %s\n", len(snap.History)+1, snap.MaxDynamic, q.Text)
	printOptions(a.out, q.Options)

	input, err := a.ask("answer (q = quit)")
	if err != nil {
		return err
	}
	err = flow.SubmitAnswer(ctx, pickOption(q.Options, input))
	if errors.Is(err, assessment.ErrAnswerRequired) {
		fmt.Fprintln(a.out, "Please answer before continuing.")
		return nil
	}
	return err
}

// resultScreen generates and shows the plan. A generation failure resets the
// flow to verification and reports done=false so the loop starts over.
func (a *App) resultScreen(ctx context.Context, flow *assessment.Flow) (bool, error) {
	res, _ := flow.Result()
	fmt.Fprintln(a.out, "\nAnalyzing your answers...")

	plan, err := a.api.GeneratePlan(ctx, res.Answers, res.Phone)
	if err != nil {
		a.log.Debug().Err(err).Msg("plan generation failed")
		fmt.Fprintln(a.out, "Could not generate your plan. Please try again.")
		flow.Abandon()
		return false, nil
	}
	a.printPlan(plan)

	if err := a.state.Progress().Clear(ctx); err != nil {
		a.log.Warn().Err(err).Msg("clear assessment progress")
	}
	if err := a.state.Progress().SavePhone(ctx, res.Phone); err != nil {
		a.log.Warn().Err(err).Msg("keep phone number")
	}

	if a.state.Token() != "" {
		if _, err := a.api.SaveResult(ctx, *plan); err != nil {
			fmt.Fprintln(a.out, "Could not save the plan to your history:", err)
		} else {
			fmt.Fprintln(a.out, "Saved to your history.")
		}
	} else {
		fmt.Fprintln(a.out, "Log in to keep this plan in your history.")
	}

	ok, err := confirm(a.in, a.out, "Send your body code to a coach on WhatsApp?")
	if err == nil && ok {
		if err := a.api.WhatsAppClick(ctx, "Clicked from Plan Results"); err != nil {
			a.log.Warn().Err(err).Msg("record whatsapp click")
		}
		fmt.Fprintln(a.out, whatsappLink(a.whatsapp, plan.BodyCode))
	}
	return true, nil
}

func whatsappLink(number, bodyCode string) string {
	msg := fmt.Sprintf("سلام، کد اختصاصی بدن من %s است و برای راهنمایی پیام دادم", bodyCode)
	if number == "" {
		return msg
	}
	return "https://wa.me/" + number + "?text=" + url.QueryEscape(msg)
}

func (a *App) printPlan(p *models.Plan) {
	fmt.Fprintf(a.out, "\nBody code: %s (%s)\n", p.BodyCode, p.AlgorithmVersion)
	if p.Goal != "" {
		fmt.Fprintf(a.out, "Goal: %s\n", p.Goal)
	}
	fmt.Fprintf(a.out, "Calories: %.0f kcal  protein %.0fg  carbs %.0fg  fats %.0fg\n",
		p.Calories, p.Macros.Protein, p.Macros.Carbs, p.Macros.Fats)
	fmt.Fprintln(a.out, "\nSupplements:")
	for _, s := range p.Supplements {
		fmt.Fprintf(a.out, "  [%s] %s (%s): %s, %s\n", s.Priority, s.Name, s.Category, s.Dosage, s.Usage)
		if s.Reason != "" {
			fmt.Fprintf(a.out, "      %s\n", s.Reason)
		}
	}
	if len(p.Vitamins) > 0 {
		fmt.Fprintf(a.out, "Vitamins: %s\n", strings.Join(p.Vitamins, ", "))
	}
	if len(p.MealSuggestions) > 0 {
		fmt.Fprintln(a.out, "Meals:")
		for _, m := range p.MealSuggestions {
			fmt.Fprintf(a.out, "  - %s\n", m)
		}
	}
	if p.Explanation != "" {
		fmt.Fprintf(a.out, "\n%s\n", p.Explanation)
	}
}

func validationText(err error) string {
	return strings.TrimPrefix(err.Error(), models.ErrValidation.Error()+": ")
}
