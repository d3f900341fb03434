package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"saska-advisor-go/internal/client"
	"saska-advisor-go/internal/logging"
)

const usage = `usage: saska [flags] <command> [args]

commands:
  register              create an account
  login                 sign in
  logout                sign out
  whoami                show the signed-in user
  passwd                change your password
  delete-account        delete your account
  assess                run the assessment and generate a plan
  history               list saved plans
  chat                  talk to the assistant
  analyze <image>       analyze a supplement label or meal photo
  admin stats|users [q]|user <id>|reset <id>|delete <id>|logs [n]|backup [file]|watch
`

type App struct {
	api      *client.Client
	state    *client.State
	in       *bufio.Reader
	out      io.Writer
	log      zerolog.Logger
	locale   string
	whatsapp string
}

func main() {
	_ = godotenv.Load(".env")

	defaultState, _ := client.DefaultStatePath()
	server := flag.String("server", envOr("SASKA_SERVER", "http://localhost:8080"), "API base URL")
	statePath := flag.String("state", envOr("SASKA_STATE", defaultState), "local state file")
	locale := flag.String("locale", envOr("AI_LOCALE", "fa"), "fallback message locale")
	whatsapp := flag.String("whatsapp", os.Getenv("WHATSAPP_NUMBER"), "coach WhatsApp number")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()

	env := "production"
	if *verbose {
		env = "development"
	}
	logger := logging.NewWithWriter(env, os.Stderr)
	if !*verbose {
		logger = logger.Level(zerolog.WarnLevel)
	}

	state, err := client.OpenState(*statePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *statePath).Msg("open state file")
	}

	app := &App{
		api: client.New(*server,
			client.WithState(state),
			client.WithLocale(*locale),
			client.WithLogger(logger)),
		state:    state,
		in:       bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		log:      logger,
		locale:   *locale,
		whatsapp: *whatsapp,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.run(ctx, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func (a *App) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return a.Register(ctx)
	case "login":
		return a.Login(ctx)
	case "logout":
		return a.Logout(ctx)
	case "whoami":
		return a.WhoAmI(ctx)
	case "passwd":
		return a.ChangePassword(ctx)
	case "delete-account":
		return a.DeleteAccount(ctx)
	case "assess":
		return a.Assess(ctx)
	case "history":
		return a.History(ctx)
	case "chat":
		return a.Chat(ctx)
	case "analyze":
		if len(rest) != 1 {
			return errUsage
		}
		return a.Analyze(ctx, rest[0])
	case "admin":
		return a.Admin(ctx, rest)
	}
	return errUsage
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
