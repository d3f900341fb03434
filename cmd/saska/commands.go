package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"saska-advisor-go/internal/ai"
	"saska-advisor-go/internal/auth"
	"saska-advisor-go/internal/models"
)

var errNotLoggedIn = errors.New("not logged in; run `saska login` first")

func (a *App) requireLogin() error {
	if a.state.Token() == "" {
		return errNotLoggedIn
	}
	return nil
}

func (a *App) Register(ctx context.Context) error {
	email, err := prompt(a.in, a.out, "Email")
	if err != nil {
		return err
	}
	name, err := prompt(a.in, a.out, "Name (optional)")
	if err != nil {
		return err
	}
	password, err := promptPassword(a.in, a.out, "Password")
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Password strength: %s\n", auth.StrengthLabel(auth.PasswordScore(password)))

	sess, err := a.api.Register(ctx, email, password, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Welcome, %s!\n", displayName(sess.User))
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := prompt(a.in, a.out, "Email")
	if err != nil {
		return err
	}
	password, err := promptPassword(a.in, a.out, "Password")
	if err != nil {
		return err
	}

	sess, err := a.api.Login(ctx, email, password)
	if errors.Is(err, models.ErrInvalidCredentials) {
		return errors.New("wrong email or password")
	}
	if err != nil {
		return err
	}
	if sess.User.IsAdmin() {
		fmt.Fprintln(a.out, "Signed in to the admin command center.")
		return nil
	}
	fmt.Fprintf(a.out, "Signed in as %s.\n", displayName(sess.User))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.api.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	u, err := a.api.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s> role=%s plans=%d joined=%s\n",
		displayName(u), u.Email, u.Role, len(u.History), u.JoinedAt.Format("2006-01-02"))
	if code := u.LatestBodyCode(); code != "" {
		fmt.Fprintf(a.out, "latest body code: %s\n", code)
	}
	return nil
}

func (a *App) ChangePassword(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	current, err := promptPassword(a.in, a.out, "Current password")
	if err != nil {
		return err
	}
	next, err := promptPassword(a.in, a.out, "New password")
	if err != nil {
		return err
	}
	if err := a.api.ChangePassword(ctx, current, next); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed.")
	return nil
}

func (a *App) DeleteAccount(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	ok, err := confirm(a.in, a.out, "Delete your account and all saved plans?")
	if err != nil || !ok {
		return err
	}
	if err := a.api.DeleteAccount(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Account deleted.")
	return nil
}

func (a *App) History(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	plans, err := a.api.History(ctx)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		fmt.Fprintln(a.out, "No saved plans yet. Run `saska assess`.")
		return nil
	}
	for _, p := range plans {
		date := ""
		if p.Date != nil {
			date = p.Date.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(a.out, "%s  %-12s %5.0f kcal  %s\n", date, p.BodyCode, p.Calories, p.Goal)
	}
	return nil
}

// Chat runs a read-eval loop until an empty line or EOF. Failed turns show
// the localized error line and are not added to the history.
func (a *App) Chat(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Ask about supplements and training. Empty line to quit.")

	var history []ai.ChatMessage
	for {
		msg, err := prompt(a.in, a.out, "you")
		if err != nil || msg == "" {
			return nil
		}
		answer, err := a.api.Chat(ctx, history, msg)
		if err != nil {
			a.log.Debug().Err(err).Msg("chat turn failed")
			fmt.Fprintln(a.out, answer)
			continue
		}
		fmt.Fprintln(a.out, answer)
		history = append(history, ai.NewChatMessage(ai.RoleUser, msg), ai.NewChatMessage(ai.RoleModel, answer))
	}
}

func (a *App) Analyze(ctx context.Context, path string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	image := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)

	instruction, err := prompt(a.in, a.out, "Instruction (empty for the default label analysis)")
	if err != nil {
		instruction = ""
	}
	analysis, err := a.api.AnalyzeImage(ctx, image, instruction)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, analysis)
	return nil
}

func displayName(u *models.User) string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
