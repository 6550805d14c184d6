// Command modelcheck verifies that the configured Gemini credential works,
// either by listing available models or by sending a short prompt.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/invoice-extractor/backend/internal/llm"
	"github.com/invoice-extractor/backend/internal/llm/gemini"
)

const pingPrompt = "Hello, are you working?"

func main() {
	list := flag.Bool("list", false, "list models that support generateContent")
	model := flag.String("model", "gemini-2.5-flash", "model to ping")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Warning: failed to read .env: %v\n", err)
	}

	key := os.Getenv("GOOGLE_API_KEY")
	if !llm.KeyConfigured(key) {
		fmt.Println("Error: GOOGLE_API_KEY not found in environment variables")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client, err := gemini.NewClient(ctx, gemini.Config{APIKey: key}, logger)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if *list {
		if err := listModels(ctx, client); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Testing model: %s\n", *model)
	reply, err := client.Ping(ctx, *model, pingPrompt, 50)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Success! Response: %s\n", strings.TrimSpace(reply))
}

func listModels(ctx context.Context, client *gemini.Client) error {
	models, err := client.ListModels(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Available models that support generateContent:")
	for _, m := range models {
		fmt.Printf("  - %s", m.Name)
		if m.DisplayName != "" {
			fmt.Printf(" (%s)", m.DisplayName)
		}
		fmt.Println()
	}
	return nil
}
