package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	tea "charm.land/bubbletea/v2"

	"github.com/codelabbj/unicash-admin-cli/api"
	"github.com/codelabbj/unicash-admin-cli/auth"
	"github.com/codelabbj/unicash-admin-cli/tui"
)

var (
	apiURL            string
	sessionFile       string
	loginEmail        string
	flagAPIURL        *string
	flagSessionFile   *string
	flagEmail         *string
	configInitialized bool
	retryClient       *retry.Client
	logger            zerolog.Logger
)

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Define flags (but don't parse yet to avoid conflicts with test flags)
	flagAPIURL = flag.String(
		"api-url",
		"",
		"Admin API base URL (default: http://localhost:8000 or API_URL env)",
	)
	flagSessionFile = flag.String(
		"session-file",
		"",
		"Session storage file (default: .unicash-session.json or SESSION_FILE env)",
	)
	flagEmail = flag.String("email", "", "Admin email for login (or set ADMIN_EMAIL env)")
}

// initConfig parses flags and initializes configuration
// Separated from init() to avoid conflicts with test flag parsing
func initConfig() {
	if configInitialized {
		return
	}
	configInitialized = true

	flag.Parse()

	// Priority: flag > env > default
	apiURL = getConfig(*flagAPIURL, "API_URL", "http://localhost:8000")
	sessionFile = getConfig(*flagSessionFile, "SESSION_FILE", ".unicash-session.json")
	loginEmail = getConfig(*flagEmail, "ADMIN_EMAIL", "")

	if err := validateAPIURL(apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid API_URL: %v\n", err)
		os.Exit(1)
	}

	if strings.HasPrefix(strings.ToLower(apiURL), "http://") {
		fmt.Fprintln(
			os.Stderr,
			"⚠️  WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!",
		)
		fmt.Fprintln(
			os.Stderr,
			"⚠️  This is only safe for local development. Use HTTPS in production.",
		)
		fmt.Fprintln(os.Stderr)
	}

	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "warn"))
	if err != nil {
		level = zerolog.WarnLevel
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	// HTTP client with retry support for transient transport failures.
	// Auth-level recovery (401 handling) lives in the auth package, not here.
	baseHTTPClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			DisableKeepAlives:   false,
		},
	}

	retryClient, err = retry.NewBackgroundClient(
		retry.WithHTTPClient(baseHTTPClient),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create retry client: %v", err))
	}
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// validateAPIURL validates that the API base URL is properly formatted
func validateAPIURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("API URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: unicash-admin [flags] <command> [args]

Commands:
  login                 log in and store the session
  logout                clear the stored session
  whoami                show the current session
  countries             list countries
  networks              list mobile-money networks
  aggregators           list payment aggregators
  users                 list platform users
  transactions          list transactions
  kyc <user-id>         list a user's KYC documents

Flags:`)
	flag.PrintDefaults()
}

func main() {
	initConfig()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	if isTTY() {
		// Run TUI program on stderr so stdout pipes are not corrupted
		m := tui.NewModel()
		// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
		// capability queries. Ctrl+C is handled by signal.NotifyContext.
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		d := tui.NewProgramDisplayer(p)
		d.Banner()
		runErr := run(d)
		p.Quit() // let BubbleTea drain terminal query responses before exiting
		wg.Wait()
		if runErr != nil {
			os.Exit(1)
		}
	} else {
		d := tui.NewPlainDisplayer(os.Stderr)
		d.Banner()
		if err := run(d); err != nil {
			os.Exit(1)
		}
	}
}

func run(d tui.Displayer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := auth.NewFileStore(sessionFile)
	session := auth.NewSession(auth.SessionConfig{
		Store:    store,
		HTTP:     retryClient,
		BaseURL:  apiURL,
		Navigate: d.LoginRequired,
		Logger:   logger,
	})
	coordinator := auth.NewCoordinator(auth.CoordinatorConfig{
		Store:        store,
		HTTP:         retryClient,
		BaseURL:      apiURL,
		OnExpire:     session.Expire,
		OnRefreshing: d.Refreshing,
		OnRefreshed:  d.RefreshOK,
		Logger:       logger,
	})
	pipeline := auth.NewClient(auth.ClientConfig{
		Store:          store,
		Refresher:      coordinator,
		HTTP:           retryClient,
		OnUnauthorized: d.AccessTokenRejected,
		OnRetrying:     d.TokenRefreshedRetrying,
		Logger:         logger,
	})
	client := api.New(apiURL, pipeline)

	session.Initialize()
	if snap := session.Current(); snap.Status == auth.StatusAuthenticated {
		d.SessionFound(snap.Identity.Email)
	} else {
		d.SessionNotFound()
	}

	cmd := flag.Arg(0)
	err := dispatch(ctx, d, session, client, cmd, flag.Args()[1:])
	if err != nil {
		d.Fatal(err)
		return err
	}

	snap := session.Current()
	email := ""
	if snap.Identity != nil {
		email = snap.Identity.Email
	}
	d.Done(email, snap.Status.String())
	return nil
}

func dispatch(
	ctx context.Context,
	d tui.Displayer,
	session *auth.Session,
	client *api.Client,
	cmd string,
	args []string,
) error {
	switch cmd {
	case "login":
		return cmdLogin(ctx, d, session)
	case "logout":
		session.Logout()
		d.LoggedOut()
		return nil
	case "whoami":
		return nil // session summary is printed by Done
	case "countries":
		return listResource(d, "countries", func() (any, int, error) {
			page, err := client.ListCountries(ctx, api.ListOptions{})
			if err != nil {
				return nil, 0, err
			}
			return page.Results, len(page.Results), nil
		})
	case "networks":
		return listResource(d, "networks", func() (any, int, error) {
			page, err := client.ListNetworks(ctx, api.ListOptions{})
			if err != nil {
				return nil, 0, err
			}
			return page.Results, len(page.Results), nil
		})
	case "aggregators":
		return listResource(d, "aggregators", func() (any, int, error) {
			page, err := client.ListAggregators(ctx, api.ListOptions{})
			if err != nil {
				return nil, 0, err
			}
			return page.Results, len(page.Results), nil
		})
	case "users":
		return listResource(d, "users", func() (any, int, error) {
			page, err := client.ListUsers(ctx, api.ListOptions{})
			if err != nil {
				return nil, 0, err
			}
			return page.Results, len(page.Results), nil
		})
	case "transactions":
		return listResource(d, "transactions", func() (any, int, error) {
			page, err := client.ListTransactions(ctx, api.ListOptions{})
			if err != nil {
				return nil, 0, err
			}
			return page.Results, len(page.Results), nil
		})
	case "kyc":
		if len(args) != 1 {
			return errors.New("usage: kyc <user-id>")
		}
		userID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		return listResource(d, "kyc documents", func() (any, int, error) {
			page, err := client.ListKYCDocuments(ctx, userID, api.ListOptions{})
			if err != nil {
				return nil, 0, err
			}
			return page.Results, len(page.Results), nil
		})
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdLogin(ctx context.Context, d tui.Displayer, session *auth.Session) error {
	email := loginEmail
	if email == "" {
		return errors.New("login requires -email or ADMIN_EMAIL")
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return errors.New("no password provided")
		}
		password = strings.TrimSpace(scanner.Text())
	}

	d.LoggingIn(email)
	if err := session.Login(ctx, email, password); err != nil {
		d.LoginFailed(err)
		return err
	}
	d.LoginOK(email)
	d.SessionSaved(sessionFile)
	return nil
}

// listResource fetches a collection and writes it as JSON to stdout.
func listResource(
	d tui.Displayer,
	name string,
	fetch func() (any, int, error),
) error {
	d.Fetching(name)
	results, count, err := fetch()
	if err != nil {
		d.FetchFailed(name, err)
		return err
	}
	d.FetchOK(name, count)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
