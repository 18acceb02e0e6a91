package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"nivesh/internal/client"
	"nivesh/internal/config"
	"nivesh/internal/money"
)

func main() {
	cfg := config.LoadClientFromEnv()
	hostURL := cfg.HostBaseURL

	root := &cobra.Command{
		Use:          "nv",
		Short:        "Nivesh investing game client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&hostURL, "host", hostURL, "host base URL")

	root.AddCommand(
		newPlayCmd(&hostURL, cfg),
		newStatusCmd(&hostURL),
		newBoardCmd(&hostURL),
		newPauseCmd(&hostURL, true),
		newPauseCmd(&hostURL, false),
		newHistoryCmd(&hostURL),
		newUploadCmd(&hostURL, cfg),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newControl(hostURL *string) *client.Control {
	return client.NewControl(strings.TrimSpace(*hostURL), os.Getenv("NIVESH_ADMIN_TOKEN"))
}

func newStatusCmd(hostURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session phase and game clock",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			info, err := newControl(hostURL).SessionInfo(ctx)
			if err != nil {
				return err
			}
			renderSessionInfo(info)
			return nil
		},
	}
}

func newBoardCmd(hostURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show the live leaderboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			board, err := newControl(hostURL).Leaderboard(ctx)
			if err != nil {
				return err
			}
			fmt.Println(renderLeaderboard(board))
			return nil
		},
	}
}

func newPauseCmd(hostURL *string, pause bool) *cobra.Command {
	use, short := "pause", "Pause the session clock (facilitator)"
	if !pause {
		use, short = "resume", "Resume the session clock (facilitator)"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			ctl := newControl(hostURL)
			var err error
			if pause {
				err = ctl.Pause(ctx)
			} else {
				err = ctl.Resume(ctx)
			}
			if err != nil {
				return err
			}
			printSuccess("Done.")
			return nil
		},
	}
}

func newHistoryCmd(hostURL *string) *cobra.Command {
	var months int
	cmd := &cobra.Command{
		Use:   "history SYMBOL",
		Short: "Show the trailing price window for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			win, err := newControl(hostURL).PriceHistory(ctx, strings.ToUpper(args[0]), months)
			if err != nil {
				return err
			}
			renderPriceWindow(win)
			return nil
		},
	}
	cmd.Flags().IntVar(&months, "months", 12, "window length in game months")
	return cmd
}

func newUploadCmd(hostURL *string, cfg config.ClientConfig) *cobra.Command {
	var sessionID, playerID string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a saved trade journal to the host",
		RunE: func(cmd *cobra.Command, _ []string) error {
			journal, err := client.OpenJournal(cfg.JournalDir, sessionID)
			if err != nil {
				return err
			}
			rows := journal.Rows()
			if len(rows) == 0 {
				printWarn("Journal is empty, nothing to upload.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := newControl(hostURL).UploadTrades(ctx, sessionID, playerID, rows); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Uploaded %d trades.", len(rows)))
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id the journal belongs to")
	cmd.Flags().StringVar(&playerID, "player", "", "player id")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("player")
	return cmd
}

func newPlayCmd(hostURL *string, cfg config.ClientConfig) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join the session and play interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				name = cfg.PlayerName
			}
			if name == "" {
				var err error
				name, err = promptRequired("Player name")
				if err != nil {
					return err
				}
			}
			return play(cmd.Context(), strings.TrimSpace(*hostURL), cfg, name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "player display name")
	return cmd
}

func play(ctx context.Context, hostURL string, cfg config.ClientConfig, name string) error {
	playerID := uuid.NewString()

	sess, err := client.Dial(ctx, hostURL, cfg.JournalDir, playerID, name)
	if err != nil {
		return err
	}
	defer sess.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errs := make(chan error, 1)
	go func() { errs <- sess.Run(runCtx) }()

	// Wait for the sealed session config before showing the prompt.
	deadline := time.After(15 * time.Second)
	for {
		if _, ok := sess.Config(); ok {
			break
		}
		select {
		case err := <-errs:
			return fmt.Errorf("connection lost: %w", err)
		case <-deadline:
			return fmt.Errorf("host never sent the session config")
		case <-time.After(100 * time.Millisecond):
		}
	}

	scfg, _ := sess.Config()
	printSuccess(fmt.Sprintf("Joined session %s as %s.", scfg.SessionID, name))
	printInfo(`Type "help" for commands.`)

	in := bufio.NewScanner(os.Stdin)
	for {
		if q := sess.PendingQuiz(); q != nil {
			printWarn(fmt.Sprintf("Quiz pending for %s (question %d). Answer with: quiz",
				q.Category, q.QuestionIndex+1))
		}
		fmt.Print("nv> ")
		if !in.Scan() {
			return nil
		}
		select {
		case err := <-errs:
			if sess.Over() {
				return finishGame(ctx, hostURL, sess, scfg.SessionID)
			}
			return fmt.Errorf("connection lost: %w", err)
		default:
		}

		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		if err := runPlayCommand(sess, scfg.HideCurrentYear, line); err != nil {
			printError(err.Error())
		}
		if sess.Over() {
			return finishGame(ctx, hostURL, sess, scfg.SessionID)
		}
	}
}

func runPlayCommand(sess *client.Session, hideYear bool, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "help":
		printHelp()
	case "port", "portfolio":
		renderPortfolio(sess, hideYear)
	case "prices":
		renderPrices(sess)
	case "assets":
		renderCatalog(sess)
	case "board":
		fmt.Println(renderLeaderboard(sess.Leaderboard()))
	case "buy", "sell":
		if len(fields) != 3 {
			return fmt.Errorf("usage: %s SYMBOL QTY", fields[0])
		}
		qty, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return fmt.Errorf("invalid quantity %q", fields[2])
		}
		units, err := money.QtyToUnits(qty)
		if err != nil {
			return err
		}
		symbol := strings.ToUpper(fields[1])
		if fields[0] == "buy" {
			return sess.Buy(symbol, units)
		}
		return sess.Sell(symbol, units)
	case "deposit", "withdraw":
		if len(fields) != 2 {
			return fmt.Errorf("usage: %s AMOUNT", fields[0])
		}
		amt, err := parseRupees(fields[1])
		if err != nil {
			return err
		}
		if fields[0] == "deposit" {
			return sess.Deposit(amt)
		}
		return sess.Withdraw(amt)
	case "fd":
		return runFDCommand(sess, fields[1:])
	case "quiz":
		q := sess.PendingQuiz()
		if q == nil {
			printInfo("No quiz pending.")
			return nil
		}
		if err := sess.AnswerQuiz(*q); err != nil {
			return err
		}
		printSuccess(fmt.Sprintf("Quiz for %s answered.", q.Category))
	case "resync":
		return sess.RequestResync()
	default:
		return fmt.Errorf("unknown command %q, try help", fields[0])
	}
	return nil
}

func runFDCommand(sess *client.Session, args []string) error {
	if len(args) == 0 {
		renderFixedDeposits(sess)
		return nil
	}
	switch args[0] {
	case "list":
		renderFixedDeposits(sess)
		return nil
	case "create":
		if len(args) != 3 {
			return fmt.Errorf("usage: fd create AMOUNT MONTHS")
		}
		amt, err := parseRupees(args[1])
		if err != nil {
			return err
		}
		months, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid months %q", args[2])
		}
		return sess.CreateFixedDeposit(amt, months)
	case "break":
		if len(args) != 2 {
			return fmt.Errorf("usage: fd break ID")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", args[1])
		}
		return sess.BreakFixedDeposit(id)
	case "collect":
		if len(args) != 2 {
			return fmt.Errorf("usage: fd collect ID")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", args[1])
		}
		return sess.CollectFixedDeposit(id)
	default:
		return fmt.Errorf("unknown fd command %q", args[0])
	}
}

// finishGame shows the final standing and ships the journal to the host.
func finishGame(ctx context.Context, hostURL string, sess *client.Session, sessionID string) error {
	printSuccess("\n== GAME OVER ==")
	renderFinal(sess)

	uploadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	ctl := client.NewControl(hostURL, "")
	if err := ctl.UploadTrades(uploadCtx, sessionID, sess.PlayerID(), sess.Journal()); err != nil {
		printWarn(fmt.Sprintf("Journal upload failed (retry with nv upload): %v", err))
		return nil
	}
	printInfo("Trade journal uploaded.")
	return nil
}

func parseRupees(s string) (money.Money, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if v <= 0 {
		return 0, fmt.Errorf("amount must be > 0")
	}
	return money.ToMicros(v), nil
}
