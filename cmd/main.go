package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rmaklakov/finchatui/internal/auth"
	"github.com/rmaklakov/finchatui/internal/chat"
	"github.com/rmaklakov/finchatui/internal/client"
	"github.com/rmaklakov/finchatui/internal/config"
	"github.com/rmaklakov/finchatui/internal/notify"
	"github.com/rmaklakov/finchatui/internal/session"
	"github.com/rmaklakov/finchatui/storage"
)

var verbose bool

// terminalNavigator is the navigation collaborator for the CLI: there is
// no login view to present, so it tells the user to re-authenticate.
type terminalNavigator struct{}

func (terminalNavigator) RedirectToLogin() {
	fmt.Println("\nYour session has expired. Please log in again.")
}

var rootCmd = &cobra.Command{
	Use:   "finchatui",
	Short: "Interactive chat client for the FinChat advisory platform",
	Long: `finchatui is a terminal client for the FinChat financial-advice
platform. It manages conversation sessions with optimistic message
delivery, keeps a local transcript archive, and maintains a real-time
alert stream for the whole login lifetime.

Credentials are read from FINCHAT_TOKEN and FINCHAT_USER_ID (a .env file
in the working directory is honored).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func main() {
	godotenv.Load(".env")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("finchatui: %s", err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func runChat(ctx context.Context) error {
	token := os.Getenv("FINCHAT_TOKEN")
	userID := os.Getenv("FINCHAT_USER_ID")
	if token == "" || userID == "" {
		return fmt.Errorf("FINCHAT_TOKEN and FINCHAT_USER_ID must be set")
	}

	cfg := config.NewConfig()

	guard := auth.NewGuard(terminalNavigator{}, cfg.RedirectDelay)
	guard.SetCredential(auth.Credential{Token: token, UserID: userID})

	api := client.NewClient(*cfg)
	dir := session.NewDirectory(api, guard, cfg.SessionTitle)
	msgLog := chat.NewMessageLog(api, guard)
	orch := session.NewOrchestrator(dir, msgLog)
	channel := notify.NewChannel(cfg.StreamURL, guard)

	db, err := storage.NewSqliteDB(cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("open history db: %w", err)
	}
	defer db.Close()

	archive, err := newArchive(db)
	if err != nil {
		return err
	}

	if err := orch.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	archive.recordSessions(dir.Sessions())

	if err := channel.Connect(ctx); err != nil {
		// Alerts are best-effort; chatting works without them.
		slog.Warn("alert stream unavailable", "error", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case a := <-channel.AlertChan:
				fmt.Printf("\n[alert] %s\n> ", a.Message)
				if err := archive.alerts.Write(a); err != nil {
					slog.Error("failed to archive alert", "error", err)
				}
			}
		}
	})
	g.Go(func() error {
		defer cancel()
		return repl(ctx, orch, channel, guard, archive)
	})

	err = g.Wait()
	channel.Disconnect()
	guard.Clear()
	return err
}

func repl(ctx context.Context, orch *session.Orchestrator, channel *notify.Channel, guard *auth.Guard, archive *archive) error {
	reader := bufio.NewReader(os.Stdin)
	dir := orch.Directory()

	printSessions(dir.Sessions(), dir)
	fmt.Println(`Type a message, or /help for commands.`)

	for {
		if ctx.Err() != nil || !guard.Authenticated() {
			return nil
		}

		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			send(ctx, orch, archive, line)
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/help":
			fmt.Println(`/sessions            list sessions
/new [title]         create a session
/switch <n>          switch to session n
/delete <n>          delete session n (asks for confirmation)
/history             show the current session's messages
/alerts              show received alerts
/refresh             re-fetch the session list
/quit                log out and exit`)
		case "/sessions":
			printSessions(dir.Sessions(), dir)
		case "/new":
			title := "New Chat"
			if len(fields) > 1 {
				title = strings.Join(fields[1:], " ")
			}
			created, err := orch.NewSession(ctx, title)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			archive.recordSession(*created)
			fmt.Printf("switched to new session %q\n", created.Title)
		case "/switch":
			s, ok := pickSession(dir.Sessions(), fields)
			if !ok {
				fmt.Println("usage: /switch <n>")
				continue
			}
			if err := orch.Select(ctx, s.ID); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Printf("switched to %q\n", s.Title)
		case "/delete":
			s, ok := pickSession(dir.Sessions(), fields)
			if !ok {
				fmt.Println("usage: /delete <n>")
				continue
			}
			fmt.Printf("delete %q? [y/N] ", s.Title)
			answer, _ := reader.ReadString('\n')
			if strings.TrimSpace(strings.ToLower(answer)) != "y" {
				continue
			}
			if err := orch.Delete(ctx, s.ID); err != nil {
				fmt.Println("error:", err)
				continue
			}
			archive.removeSession(s.ID)
			if active, ok := dir.Active(); ok {
				fmt.Printf("deleted; now on %q\n", active.Title)
			}
		case "/history":
			for _, m := range orch.Log().Messages() {
				printMessage(m)
			}
		case "/alerts":
			for _, a := range channel.Notifications() {
				fmt.Printf("[%s] %s\n", a.Timestamp.Format("15:04:05"), a.Message)
			}
		case "/refresh":
			if err := orch.Refresh(ctx); err != nil {
				fmt.Println("error:", err)
				continue
			}
			archive.recordSessions(dir.Sessions())
			printSessions(dir.Sessions(), dir)
		case "/quit":
			return nil
		default:
			fmt.Println("unknown command; /help lists commands")
		}
	}
}

func send(ctx context.Context, orch *session.Orchestrator, archive *archive, text string) {
	if orch.Log().Sending() {
		fmt.Println("still sending the previous message, hold on")
		return
	}
	exchange, err := orch.Send(ctx, text)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if exchange == nil {
		return
	}
	archive.recordExchange(exchange.User, exchange.Assistant)
	printMessage(exchange.Assistant)
}

func pickSession(sessions []chat.Session, fields []string) (chat.Session, bool) {
	if len(fields) < 2 {
		return chat.Session{}, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 || n > len(sessions) {
		return chat.Session{}, false
	}
	return sessions[n-1], true
}

func printSessions(sessions []chat.Session, dir *session.Directory) {
	active, _ := dir.Active()
	for i, s := range sessions {
		marker := " "
		if s.ID == active.ID {
			marker = "*"
		}
		fmt.Printf("%s %d. %s (%s)\n", marker, i+1, s.Title, s.UpdatedAt.Format("Jan 2 15:04"))
	}
}

func printMessage(m chat.Message) {
	prefix := "you"
	if m.Role == chat.RoleAssistant {
		prefix = "advisor"
	}
	fmt.Printf("%s: %s\n", prefix, m.Content)
}
