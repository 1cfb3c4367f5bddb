// authcli exercises the secure login flow against a running gateway: it
// submits credentials, validates the stored session, prints the current
// user, and optionally logs out.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"sterihub/internal/authclient"
	"sterihub/internal/authclient/csrf"
	"sterihub/internal/authclient/session"
	"sterihub/internal/authclient/storage"
	"sterihub/internal/backend"
	"sterihub/internal/platform/config"
	"sterihub/internal/platform/logger"
)

func main() {
	cfg, err := config.ClientFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	baseURL := flag.String("base-url", "", "gateway base URL (e.g. http://localhost:8080/functions/v1)")
	email := flag.String("email", "", "account email")
	logout := flag.Bool("logout", false, "log out after verifying the session")
	flag.Parse()

	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *email == "" {
		fmt.Fprintln(os.Stderr, "usage: authcli -email you@facility.example [-base-url ...] [-logout]")
		os.Exit(2)
	}

	fmt.Fprint(os.Stderr, "password: ")
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not read password:", err)
		os.Exit(1)
	}
	password = strings.TrimRight(password, "\r\n")

	log := logger.New()
	store := storage.NewMemory()
	guard := csrf.NewGuard(store, log)
	sdk := backend.NewHTTPClient(cfg.BaseURL, cfg.Timeout)
	sessions := session.New(store, sdk, log, session.WithTimeout(cfg.Timeout))
	client := authclient.New(authclient.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Retry:   authclient.RetryPolicy{Attempts: cfg.RetryAttempts},
	}, nil, guard, sessions, log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := client.SecureLogin(ctx, authclient.Credentials{
		Email:    *email,
		Password: password,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "login failed:", err)
		os.Exit(1)
	}
	if !result.Success {
		if result.RateLimit != nil {
			resetAt := time.UnixMilli(result.RateLimit.ResetTime)
			fmt.Fprintf(os.Stderr, "rate limited: %s (retry after %s)\n", result.Message, resetAt.Format(time.RFC3339))
		} else {
			fmt.Fprintln(os.Stderr, "login refused:", result.Message)
		}
		os.Exit(1)
	}

	fmt.Printf("logged in as %s (%s)\n", result.User.Email, result.User.Role)

	if user := client.CurrentUser(ctx); user != nil {
		fmt.Printf("session valid, user id %s\n", user.ID)
	} else {
		fmt.Println("session could not be validated")
	}

	if *logout {
		client.Logout(ctx)
		fmt.Println("logged out")
	}
}
