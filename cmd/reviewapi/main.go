package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"reviewapi/internal/artifacts"
	"reviewapi/internal/authz"
	"reviewapi/internal/clients"
	"reviewapi/internal/config"
	"reviewapi/internal/db"
	"reviewapi/internal/engine"
	"reviewapi/internal/migrate"
	"reviewapi/internal/notify"
	"reviewapi/internal/repo"
	"reviewapi/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "reviewapi",
	Short: "Review API service and admin CLI",
	Long: `reviewapi serves the review backend for crowdsourcing challenges:
submission artifacts and downloads, review opportunities and applications,
AI workflow runs, and scorecards. Admin subcommands operate on the local
database directly.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("REVIEWAPI")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", "reviewapi.yml", "config file path")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-admin", "actor identifier for audit records")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(applicationCmd())
	rootCmd.AddCommand(opportunityCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(tokenCmd())
}

// localAdmin is the identity CLI subcommands act under. Direct database
// access implies operator privileges.
func localAdmin() authz.Identity {
	return authz.Identity{
		UserID: viper.GetString("actor-id"),
		Roles:  []string{authz.AdminRole},
	}
}

func loadConfig() (*config.Config, error) {
	return config.LoadOptional(viper.GetString("config"))
}

func buildEngine(cfg *config.Config, logger *zap.Logger) (engine.Engine, func(), error) {
	if _, err := db.EnsureDataDir(cfg.Storage.DataDir); err != nil {
		return engine.Engine{}, nil, err
	}
	conn, err := db.Open(db.Config{DataDir: cfg.Storage.DataDir})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	store, err := artifacts.NewStore(cfg.Storage.ArtifactDir)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	tokens := &clients.M2MTokenSource{
		AuthURL:      cfg.Services.AuthURL,
		ClientID:     cfg.Services.ClientID,
		ClientSecret: cfg.Services.ClientSecret,
	}
	e := engine.New(conn, cfg, logger)
	e.Challenges = clients.NewChallenge(cfg.Services.ChallengeURL, tokens, cfg.Services.Timeout.Std())
	e.Roles = clients.NewResource(cfg.Services.ResourceURL, tokens, cfg.Services.Timeout.Std())
	e.Members = clients.NewMember(cfg.Services.MemberURL, tokens, cfg.Services.Timeout.Std())
	e.Mailer = notify.NewMailer(cfg.Services.BusURL, cfg.Email.Sender, logger)
	e.Store = store
	return e, func() { conn.Close() }, nil
}

func withEngine(fn func(context.Context, engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := zap.NewNop()
	e, closeFn, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(context.Background(), e)
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			if secret := os.Getenv("REVIEWAPI_JWT_SECRET"); secret != "" {
				cfg.Auth.JWTSecret = secret
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			e, closeFn, err := buildEngine(cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: cfg.Server.BasePath,
				Auth: server.AuthConfig{
					JWTSecret:   cfg.Auth.JWTSecret,
					M2MSubjects: cfg.Auth.M2MSubjects,
				},
				Logger: logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving review api",
				zap.String("addr", cfg.Server.Addr),
				zap.String("base_path", cfg.Server.BasePath))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if _, err := db.EnsureDataDir(cfg.Storage.DataDir); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{DataDir: cfg.Storage.DataDir})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func applicationCmd() *cobra.Command {
	app := &cobra.Command{Use: "application", Short: "Manage review applications"}
	app.AddCommand(applicationListCmd())
	app.AddCommand(applicationApproveCmd())
	app.AddCommand(applicationRejectCmd())
	app.AddCommand(applicationRejectPendingCmd())
	return app
}

func applicationListCmd() *cobra.Command {
	var opportunityID, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List review applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListApplications(ctx, localAdmin(), repo.ApplicationFilters{
					OpportunityID: opportunityID,
					Status:        status,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "User", "Opportunity", "Role", "Status", "Updated"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.UserID, a.OpportunityID, a.Role, a.Status, a.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opportunityID, "opportunity", "", "filter by opportunity id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (PENDING, APPROVED, REJECTED)")
	return cmd
}

func applicationApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				a, err := e.ApproveApplication(ctx, localAdmin(), args[0])
				if err != nil {
					return err
				}
				return printJSON(a)
			})
		},
	}
}

func applicationRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				a, err := e.RejectApplication(ctx, localAdmin(), args[0])
				if err != nil {
					return err
				}
				return printJSON(a)
			})
		},
	}
}

func applicationRejectPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject-pending <opportunity-id>",
		Short: "Reject every pending application on an opportunity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				items, err := e.RejectAllPendingApplications(ctx, localAdmin(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("rejected %d application(s)\n", len(items))
				return nil
			})
		},
	}
}

func opportunityCmd() *cobra.Command {
	opp := &cobra.Command{Use: "opportunity", Short: "Manage review opportunities"}
	opp.AddCommand(opportunityListCmd())
	opp.AddCommand(opportunityCreateCmd())
	return opp
}

func opportunityListCmd() *cobra.Command {
	var challengeID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List review opportunities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListOpportunities(ctx, challengeID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Challenge", "Type", "Status", "Positions"})
				for _, o := range items {
					tw.AppendRow(table.Row{o.ID, o.ChallengeID, o.Type, o.Status, o.OpenPositions})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&challengeID, "challenge", "", "filter by challenge id")
	return cmd
}

func opportunityCreateCmd() *cobra.Command {
	var challengeID, oppType string
	var positions int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a review opportunity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				o, err := e.CreateOpportunity(ctx, localAdmin(), engine.OpportunityCreateOptions{
					ChallengeID:   challengeID,
					Type:          oppType,
					OpenPositions: positions,
				})
				if err != nil {
					return err
				}
				return printJSON(o)
			})
		},
	}
	cmd.Flags().StringVar(&challengeID, "challenge", "", "challenge id")
	cmd.Flags().StringVar(&oppType, "type", "REVIEW", "opportunity type (REVIEW, SPEC_REVIEW, CHECKPOINT_REVIEW)")
	cmd.Flags().IntVar(&positions, "positions", 1, "open positions")
	_ = cmd.MarkFlagRequired("challenge")
	return cmd
}

func logCmd() *cobra.Command {
	lc := &cobra.Command{Use: "log", Short: "Inspect the audit log"}
	var limit int
	var evtType string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				events, err := e.ListEvents(ctx, localAdmin(), limit, 0, evtType, "", "")
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + "/" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&limit, "limit", 50, "number of events")
	tail.Flags().StringVar(&evtType, "type", "", "filter by event type")
	lc.AddCommand(tail)
	return lc
}

// tokenCmd mints a signed token against the configured secret, for poking
// the API from scripts.
func tokenCmd() *cobra.Command {
	var sub, handle string
	var roles []string
	var machine bool
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			secret := cfg.Auth.JWTSecret
			if env := os.Getenv("REVIEWAPI_JWT_SECRET"); env != "" {
				secret = env
			}
			claims := jwt.MapClaims{
				"sub":     sub,
				"handle":  handle,
				"roles":   roles,
				"machine": machine,
				"iat":     time.Now().Unix(),
				"exp":     time.Now().Add(ttl).Unix(),
			}
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "local-admin", "token subject")
	cmd.Flags().StringVar(&handle, "handle", "", "member handle")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "global roles (repeatable)")
	cmd.Flags().BoolVar(&machine, "machine", false, "mark as machine caller")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
