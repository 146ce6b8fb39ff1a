// LifeSync CLI - sync personal health and time data into one database.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lifesync-hq/lifesync/internal/config"
	"github.com/lifesync-hq/lifesync/internal/core"
	"github.com/lifesync-hq/lifesync/internal/oauthflow"
	"github.com/lifesync-hq/lifesync/internal/scheduler"
	"github.com/lifesync-hq/lifesync/internal/sources"
	"github.com/lifesync-hq/lifesync/internal/sources/cronometer"
	"github.com/lifesync-hq/lifesync/internal/sources/toggl"
	"github.com/lifesync-hq/lifesync/internal/sources/whoop"
	"github.com/lifesync-hq/lifesync/internal/sources/withings"
	"github.com/lifesync-hq/lifesync/internal/storage"
)

var (
	dataDir string

	version = "0.2.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lifesync",
		Short: "LifeSync - pull your health and time data into one place",
		Long: `LifeSync syncs workouts, body weight, time entries, and nutrition
from Whoop, Withings, Toggl Track, and Cronometer into a local
SQLite database.

Runs are idempotent: re-syncing a window never duplicates records.`,
	}

	home, _ := os.UserHomeDir()
	defaultDataDir := filepath.Join(home, ".lifesync")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir, "data directory")

	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env assembles the shared runtime pieces every command needs: loaded
// config, an open migrated database, and the credential store.
type env struct {
	cfg   *config.Config
	db    *storage.DB
	creds *storage.CredentialStore
}

func openEnv() (*env, error) {
	cfg, err := config.Load(filepath.Join(dataDir, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.DataDir = dataDir

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, err
	}

	db, err := storage.Open(storage.Config{Path: filepath.Join(dataDir, "lifesync.db")})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &env{
		cfg:   cfg,
		db:    db,
		creds: storage.NewCredentialStore(db, cfg.Bootstrap),
	}, nil
}

func (e *env) close() {
	e.db.Close()
}

// buildSyncers wires one syncer per provider.
func (e *env) buildSyncers() []sources.Syncer {
	whoopAuth := whoop.NewAuthenticator(e.creds)
	withingsAuth := withings.NewAuthenticator(e.creds)

	helperPath := e.cfg.Cronometer.HelperPath
	if helperPath == "" {
		helperPath = "cronometer-export"
	}
	bridge := cronometer.NewBridge(helperPath, e.cfg.Cronometer.HelperTimeout())

	return []sources.Syncer{
		whoop.NewSyncer(whoop.NewClient(whoopAuth), storage.NewWorkoutStore(e.db)),
		withings.NewSyncer(withings.NewClient(withingsAuth), storage.NewWeighInStore(e.db)),
		toggl.NewSyncer(toggl.NewClient(e.creds), storage.NewTimeLogStore(e.db)),
		cronometer.NewSyncer(bridge, e.creds, storage.NewNutritionStore(e.db)),
	}
}

func syncCmd() *cobra.Command {
	var days int
	var only string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync all providers for a window of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			var onlyProvider core.Provider
			if only != "" {
				p, err := core.ParseProvider(only)
				if err != nil {
					return err
				}
				onlyProvider = p
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			orch := sources.NewOrchestrator(e.buildSyncers()...)
			report := orch.Run(cmd.Context(), core.WindowForDays(days), onlyProvider)

			printReport(report)

			if !report.AllSucceeded() {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "number of past days to sync")
	cmd.Flags().StringVar(&only, "only", "", "sync a single provider (whoop, withings, toggl, cronometer)")
	return cmd
}

func printReport(report *core.Report) {
	fmt.Println()
	fmt.Printf("Sync report  %s to %s  (%s)\n",
		report.Window.StartDate(), report.Window.EndDate(),
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	fmt.Println(strings.Repeat("-", 64))
	fmt.Printf("%-12s %-8s %8s %8s %8s\n", "SOURCE", "STATUS", "CREATED", "UPDATED", "SKIPPED")

	for _, provider := range core.Providers() {
		result, ok := report.Results[provider]
		if !ok {
			continue
		}
		status := "ok"
		if !result.Succeeded {
			status = "FAILED"
			if result.AuthError {
				status = "AUTH"
			}
		}
		fmt.Printf("%-12s %-8s %8d %8d %8d\n",
			provider, status, result.Created, result.Updated, result.Skipped)
		if result.ErrorMessage != "" {
			fmt.Printf("  %s\n", result.ErrorMessage)
		}
		if result.AuthError {
			fmt.Printf("  run 'lifesync auth %s' to re-authorize\n", strings.ToLower(string(provider)))
		}
	}
	fmt.Println(strings.Repeat("-", 64))
}

func authCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth <provider>",
		Short: "Authorize a provider and store its credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := core.ParseProvider(args[0])
			if err != nil {
				return err
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			switch provider {
			case core.ProviderWhoop:
				auth := whoop.NewAuthenticator(e.creds)
				return runBrowserFlow(cmd.Context(), provider, auth.AuthURL, auth.Exchange)
			case core.ProviderWithings:
				auth := withings.NewAuthenticator(e.creds)
				return runBrowserFlow(cmd.Context(), provider, auth.AuthURL, auth.Exchange)
			case core.ProviderToggl:
				return authToggl(e)
			case core.ProviderCronometer:
				return authCronometer(e)
			}
			return fmt.Errorf("unknown provider %q", args[0])
		},
	}
}

// runBrowserFlow drives the authorization-code dance: print the URL,
// catch the redirect on localhost, exchange the code.
func runBrowserFlow(ctx context.Context, provider core.Provider, authURL func(state string) (string, error), exchange func(ctx context.Context, code string) error) error {
	state := uuid.New().String()

	url, err := authURL(state)
	if err != nil {
		return err
	}

	server := oauthflow.NewCallbackServer(8765, state)
	server.Start()
	defer server.Shutdown(ctx)

	fmt.Printf("\nOpen this URL in your browser to authorize %s:\n\n%s\n\n", provider, url)
	fmt.Println("Waiting for authorization...")

	code, err := server.WaitForCode(5 * time.Minute)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	if err := exchange(ctx, code); err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}

	fmt.Printf("\n%s connected. Tokens stored.\n", provider)
	return nil
}

func authToggl(e *env) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Toggl API token: ")
	token, _ := reader.ReadString('\n')
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("api token is required")
	}

	fmt.Print("Toggl workspace ID: ")
	workspace, _ := reader.ReadString('\n')
	workspace = strings.TrimSpace(workspace)
	if workspace == "" {
		return fmt.Errorf("workspace id is required")
	}

	err := e.creds.Save(&core.Credential{
		Provider:    core.ProviderToggl,
		APIToken:    token,
		WorkspaceID: workspace,
	})
	if err != nil {
		return err
	}

	fmt.Println("Toggl credential stored.")
	return nil
}

func authCronometer(e *env) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Cronometer username (email): ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}

	fmt.Print("Cronometer password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()
	if len(password) == 0 {
		return fmt.Errorf("password is required")
	}

	err = e.creds.Save(&core.Credential{
		Provider: core.ProviderCronometer,
		Username: username,
		Password: string(password),
	})
	if err != nil {
		return err
	}

	fmt.Println("Cronometer credential stored.")
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show credential and data status per provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			counts := map[core.Provider]func() (int, error){
				core.ProviderWhoop:      func() (int, error) { return storage.NewWorkoutStore(e.db).CountBySource(core.ProviderWhoop) },
				core.ProviderWithings:   func() (int, error) { return storage.NewWeighInStore(e.db).CountBySource(core.ProviderWithings) },
				core.ProviderToggl:      func() (int, error) { return storage.NewTimeLogStore(e.db).CountBySource(core.ProviderToggl) },
				core.ProviderCronometer: func() (int, error) { return storage.NewNutritionStore(e.db).CountBySource(core.ProviderCronometer) },
			}

			fmt.Printf("%-12s %-14s %8s\n", "PROVIDER", "CREDENTIAL", "RECORDS")
			for _, provider := range core.Providers() {
				credStatus := "missing"
				if cred, err := e.creds.Get(provider); err == nil {
					credStatus = "ok"
					if cred.TokenExpiresAt != nil && cred.TokenExpiresAt.Before(time.Now()) {
						credStatus = "expired"
					}
				}

				n, err := counts[provider]()
				if err != nil {
					return err
				}
				fmt.Printf("%-12s %-14s %8d\n", provider, credStatus, n)
			}
			return nil
		},
	}
}

func daemonCmd() *cobra.Command {
	var days int
	var every time.Duration
	var at string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run syncs on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			orch := sources.NewOrchestrator(e.buildSyncers()...)

			sched := scheduler.New(e.cfg.Timezone)
			job := &scheduler.Job{
				Name:    "sync-all",
				Timeout: 10 * time.Minute,
				Run: func(ctx context.Context) error {
					report := orch.Run(ctx, core.WindowForDays(days), "")
					printReport(report)
					if !report.AllSucceeded() {
						return fmt.Errorf("one or more providers failed")
					}
					return nil
				},
			}
			if at != "" {
				job.Schedule = scheduler.Schedule{At: at}
			} else {
				job.Schedule = scheduler.Schedule{Interval: every}
			}
			if err := sched.Add(job); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := sched.Start(ctx); err != nil {
				return err
			}
			fmt.Println("Daemon started. Press Ctrl-C to stop.")

			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "number of past days each run syncs")
	cmd.Flags().DurationVar(&every, "every", 6*time.Hour, "run interval")
	cmd.Flags().StringVar(&at, "at", "", "run daily at this local time instead (e.g. 06:30)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lifesync %s\n", version)
		},
	}
}
