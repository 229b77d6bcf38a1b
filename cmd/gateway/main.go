// Command budgetcored runs the budget control core's HTTP server: it wires
// the identity store, ledger store, pricing table and request gate behind
// internal/httpserver, and enforces internal/bootguard's secret checks
// before binding a listener.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/budgetgate/budgetcore/internal/bootguard"
	"github.com/budgetgate/budgetcore/internal/bootstrap"
	"github.com/budgetgate/budgetcore/internal/config"
	"github.com/budgetgate/budgetcore/internal/credential"
	"github.com/budgetgate/budgetcore/internal/gate"
	"github.com/budgetgate/budgetcore/internal/health"
	"github.com/budgetgate/budgetcore/internal/hooks"
	"github.com/budgetgate/budgetcore/internal/httpserver"
	"github.com/budgetgate/budgetcore/internal/identity"
	identitypostgres "github.com/budgetgate/budgetcore/internal/identity/postgres"
	identitysqlite "github.com/budgetgate/budgetcore/internal/identity/sqlite"
	"github.com/budgetgate/budgetcore/internal/ledger"
	ledgerpostgres "github.com/budgetgate/budgetcore/internal/ledger/postgres"
	ledgersqlite "github.com/budgetgate/budgetcore/internal/ledger/sqlite"
	"github.com/budgetgate/budgetcore/internal/logging"
	"github.com/budgetgate/budgetcore/internal/metrics"
	"github.com/budgetgate/budgetcore/internal/pricing"
	"github.com/budgetgate/budgetcore/internal/schema"
	"github.com/budgetgate/budgetcore/internal/version"
	"github.com/budgetgate/budgetcore/internal/webauth"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "budgetcored init:", err)
			os.Exit(1)
		}
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "create-admin" {
		if err := runCreateAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "budgetcored create-admin:", err)
			os.Exit(1)
		}
		return
	}

	fs := flag.NewFlagSet("budgetcored", flag.ExitOnError)
	root := fs.String("root", ".", "config root directory")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if *showVersion {
		fmt.Println(version.FullInfo())
		return
	}

	if err := run(*root); err != nil {
		fmt.Fprintln(os.Stderr, "budgetcored:", err)
		os.Exit(1)
	}
}

// runInit scaffolds config/setting.ini and config/<env>/budgetcore.ini via
// internal/bootstrap, for first-time setup before budgetcored can run.
func runInit(args []string) error {
	fs := flag.NewFlagSet("budgetcored init", flag.ExitOnError)
	root := fs.String("root", ".", "config root directory")
	environment := fs.String("environment", "dev", "environment name")
	email := fs.String("email", "dev@example.com", "operator contact email")
	listenAddr := fs.String("listen-addr", ":8080", "HTTP listen address")
	restrictive := fs.Bool("restrictive-enforcement", true, "value written as restrictive_enforcement in the generated config")
	force := fs.Bool("force", false, "overwrite existing config files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := bootstrap.InitOptions{
		Root:                   *root,
		Environment:            *environment,
		Email:                  *email,
		ListenAddr:             *listenAddr,
		RestrictiveEnforcement: *restrictive,
		Force:                  *force,
	}
	if err := bootstrap.Validate(opts); err != nil {
		return err
	}
	return bootstrap.Init(opts)
}

// runCreateAdmin provisions the first admin user directly against the
// configured store. There is deliberately no HTTP endpoint that accepts a
// plaintext password from a remote caller; an operator with shell access to
// the deployment runs this instead.
func runCreateAdmin(args []string) error {
	fs := flag.NewFlagSet("budgetcored create-admin", flag.ExitOnError)
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "admin password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return fmt.Errorf("both -email and -password are required")
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		return fmt.Errorf("load secrets: %w", err)
	}

	identityStore, ledgerStore, _, err := openStores(secrets)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer identityStore.Close()
	defer ledgerStore.Close()

	hash, err := identity.HashPassword(*password)
	if err != nil {
		return err
	}
	user, err := identityStore.CreateUser(context.Background(), *email, hash, identity.RoleAdmin)
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	fmt.Printf("created admin user %s (%s)\n", user.Email, user.ID)
	return nil
}

func run(root string) error {
	secrets, err := config.LoadSecrets()
	if err != nil {
		return fmt.Errorf("load secrets: %w", err)
	}
	mode := secrets.Mode()
	if err := bootguard.Enforce(mode, secrets); err != nil {
		return err
	}

	cfg, err := config.LoadCoreConfig(root)
	if err != nil {
		return fmt.Errorf("load core config: %w", err)
	}

	log, closer, err := logging.New(cfg.LogLevel, cfg.LogFile, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closer.Close()

	log.Info().Str("environment", cfg.Environment).Str("mode", string(mode)).Msg("starting budgetcored")

	identityStore, ledgerStore, sharedDB, err := openStores(secrets)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer identityStore.Close()
	defer ledgerStore.Close()

	var checker *health.Checker
	if sharedDB != nil {
		checker = health.New(health.Config{IdentityDB: sharedDB, LedgerDB: sharedDB})
	}

	sealer, err := identity.NewSealer(secrets.ICTokenSecret)
	if err != nil {
		return fmt.Errorf("init sealer: %w", err)
	}

	priceTable := pricing.NewStore()
	priceTable.SetLogger(zerologPrintfAdapter{log})
	priceTable.StartAutoRefresh(cfg.PricingFile, 30*time.Second)

	dispatcher := &hooks.Dispatcher{}
	dispatcher.Register(func(_ context.Context, evt hooks.Event) error {
		log.Info().Str("event_type", string(evt.Type)).Str("actor_id", evt.ActorID).
			Interface("metadata", evt.Metadata).Msg("budget control event")
		return nil
	})
	if hookCfg := loadHookConfig(); hookCfg.Enabled {
		if err := hookCfg.Validate(); err != nil {
			return fmt.Errorf("hook config: %w", err)
		}
		dispatcher.Register(hookCfg.BuildScriptHandler())
		log.Info().Str("script", hookCfg.ScriptPath).Msg("registered external event hook")
	}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	translator := credential.New(identityStore, sealer)
	requestGate := gate.New(translator, ledgerStore, priceTable, dispatcher, collector)

	var webauthMgr *webauth.Manager
	if secrets.JWTSecret != "" {
		webauthMgr, err = webauth.New(secrets.JWTSecret, 24*time.Hour)
		if err != nil {
			return fmt.Errorf("init webauth: %w", err)
		}
	} else {
		log.Warn().Msg("JWT_SECRET unset: admin login routes disabled")
	}

	server := httpserver.New(identityStore, ledgerStore, sealer, requestGate, collector, webauthMgr, checker, log)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

// openStores opens PostgreSQL-backed identity and ledger stores sharing one
// connection pool when DATABASE_URL is set, and falls back to a pair of
// SQLite files under ./data for local development. Both backends satisfy
// the same Store interfaces, so nothing above this call needs to know
// which one is live. The returned *sql.DB is non-nil only in the Postgres
// case, for internal/health's connectivity check; the SQLite backend has no
// shared *sql.DB to probe.
func openStores(secrets config.Secrets) (identity.Store, ledger.Store, *sql.DB, error) {
	if dsn := secrets.DatabaseURL; dsn != "" {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres db: %w", err)
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetConnMaxIdleTime(10 * time.Minute)

		if err := schema.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("apply schema migrations: %w", err)
		}

		identityStore := identitypostgres.New(db)
		ledgerStore := ledgerpostgres.NewFromDB(db)
		return identityStore, ledgerStore, db, nil
	}

	dataDir := "data"
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	identityStore, err := identitysqlite.New(dataDir + "/identity.db")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open identity store: %w", err)
	}

	ledgerStore, err := ledgersqlite.New(dataDir + "/ledger.db")
	if err != nil {
		_ = identityStore.Close()
		return nil, nil, nil, fmt.Errorf("open ledger store: %w", err)
	}

	return identityStore, ledgerStore, nil, nil
}

// loadHookConfig binds an optional external event hook from the
// environment. Unset BUDGETCORE_HOOK_SCRIPT leaves hooks disabled.
func loadHookConfig() hooks.Config {
	script := os.Getenv("BUDGETCORE_HOOK_SCRIPT")
	if script == "" {
		return hooks.Config{}
	}
	timeout := 5 * time.Second
	return hooks.Config{
		Enabled:    true,
		ScriptPath: script,
		Timeout:    timeout,
	}
}

type zerologPrintfAdapter struct{ log zerolog.Logger }

func (a zerologPrintfAdapter) Printf(format string, args ...any) {
	a.log.Warn().Msg(fmt.Sprintf(format, args...))
}
