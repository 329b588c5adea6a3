package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/clock"
	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/store"
)

var notesEmail string

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Print a user's notes",
	Long:  "Print every note stored for a user, oldest first, with reminders shown in the configured time zone.",
	RunE:  runNotes,
}

func init() {
	notesCmd.Flags().StringVar(&notesEmail, "email", "", "user email (required)")
	notesCmd.MarkFlagRequired("email")
}

func runNotes(cmd *cobra.Command, args []string) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return printNotes(ctx, cmd.OutOrStdout(), db, notesEmail, cfg.User.Timezone, time.Now())
}

func printNotes(ctx context.Context, w io.Writer, db *store.DB, email, tz string, now time.Time) error {
	user, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("no user with email %q", email)
	}

	count, err := db.CountNotes(ctx, user.ID)
	if err != nil {
		return err
	}
	if count == 0 {
		fmt.Fprintln(w, "No notes.")
		return nil
	}
	today, err := clock.Today(now, tz)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d notes for %s as of %s (%s)\n\n", count, email, today, tz)

	notes, err := db.ListNotes(ctx, user.ID)
	if err != nil {
		return err
	}

	for i, n := range notes {
		created, err := clock.ToLocal(time.UnixMilli(n.CreatedAt), tz)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d. %s  [%s]\n", i+1, n.Title, created)
		if at := n.Reminder(); at != nil {
			local, err := clock.ToLocal(*at, tz)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "   reminder: %s (%s)\n", local, tz)
		}
		fmt.Fprintf(w, "   %s\n\n", n.Content)
	}
	return nil
}
