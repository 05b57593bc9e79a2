// Package main is the terminal client for mock interviews.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Bill1907/prepup/internal/voice"
)

var rootCmd = &cobra.Command{
	Use:   "interview",
	Short: "Practice interview questions from the terminal",
	Long:  "Lists generated interview questions and runs a live voice mock interview against the prepup API.",
}

var (
	apiBaseURL string
	authToken  string
	guestID    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api", envOr("PREPUP_API_URL", "http://localhost:8080"), "prepup API base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("PREPUP_TOKEN"), "bearer token of a signed-in user")
	rootCmd.PersistentFlags().StringVar(&guestID, "guest", os.Getenv("PREPUP_GUEST_ID"), "guest id used when no token is set")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// authorizer picks the identity header for API calls.
func authorizer() (func(*http.Request), error) {
	switch {
	case authToken != "":
		return voice.BearerToken(authToken), nil
	case guestID != "":
		return voice.GuestID(guestID), nil
	default:
		return nil, fmt.Errorf("set --token or --guest (or PREPUP_TOKEN / PREPUP_GUEST_ID)")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
