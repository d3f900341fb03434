package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"saska-advisor-go/internal/admin"
)

func (a *App) Admin(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if len(args) == 0 {
		return errUsage
	}
	sub, rest := args[0], args[1:]
	arg := func(i int) string {
		if i < len(rest) {
			return rest[i]
		}
		return ""
	}

	switch sub {
	case "stats":
		stats, err := a.api.Stats(ctx)
		if err != nil {
			return err
		}
		a.printStats(stats)
		return nil
	case "users":
		return a.adminUsers(ctx, arg(0))
	case "user":
		if arg(0) == "" {
			return errUsage
		}
		return a.adminUser(ctx, arg(0))
	case "reset":
		if arg(0) == "" {
			return errUsage
		}
		pw, err := promptPassword(a.in, a.out, "New password for the user")
		if err != nil {
			return err
		}
		if err := a.api.ResetPassword(ctx, arg(0), pw); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Password reset.")
		return nil
	case "delete":
		if arg(0) == "" {
			return errUsage
		}
		ok, err := confirm(a.in, a.out, "Delete user "+arg(0)+" and all their plans?")
		if err != nil || !ok {
			return err
		}
		if err := a.api.DeleteUser(ctx, arg(0)); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "User deleted.")
		return nil
	case "logs":
		limit := admin.RecentLogLimit
		if v := arg(0); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errUsage
			}
			limit = n
		}
		logs, err := a.api.Logs(ctx, limit)
		if err != nil {
			return err
		}
		for _, l := range logs {
			fmt.Fprintf(a.out, "%s  %-15s %s\n", l.Timestamp.Local().Format("01-02 15:04:05"), l.Type, l.Details)
		}
		return nil
	case "backup":
		return a.adminBackup(ctx, arg(0))
	case "watch":
		return a.adminWatch(ctx)
	}
	return errUsage
}

func (a *App) printStats(s *admin.Stats) {
	fmt.Fprintf(a.out, "users %d  tests %d  whatsapp %d  conversion %d%%\n",
		s.TotalUsers, s.TotalTests, s.WhatsAppClicks, s.ConversionRate)
}

func (a *App) adminUsers(ctx context.Context, query string) error {
	users, err := a.api.Users(ctx, query)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tTESTS\tBODY CODE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", u.ID, u.Name, u.Email, u.Role, u.Tests, u.LatestBodyCode)
	}
	return tw.Flush()
}

func (a *App) adminUser(ctx context.Context, id string) error {
	u, err := a.api.User(ctx, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(u)
}

func (a *App) adminBackup(ctx context.Context, path string) error {
	backup, err := a.api.Backup(ctx)
	if err != nil {
		return err
	}
	if path == "" {
		path = fmt.Sprintf("saska_backup_%s.json", time.Now().Format("2006-01-02"))
	}
	raw, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Backup written to %s (%d users, %d logs).\n", path, len(backup.Users), len(backup.Logs))
	return nil
}

// adminWatch refreshes the stats until interrupted.
func (a *App) adminWatch(ctx context.Context) error {
	p := admin.NewPoller(a.api.Stats, admin.DefaultPollInterval, a.log)
	err := p.Run(ctx, func(s *admin.Stats) {
		fmt.Fprintf(a.out, "%s  ", time.Now().Format("15:04:05"))
		a.printStats(s)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
