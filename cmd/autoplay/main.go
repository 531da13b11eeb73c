// Command autoplay plays one automated Token Burner game and prints the leaderboard
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/alexbotov/tokenburner/internal/config"
	"github.com/alexbotov/tokenburner/pkg/tokenburner"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	seed := cfg.Client.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	client := tokenburner.NewClient(&tokenburner.ClientConfig{
		BaseURL: cfg.Client.BaseURL,
		APIKey:  cfg.Client.APIKey,
		Timeout: cfg.Client.Timeout,
		Logger:  log.Default(),
		Rand:    rand.New(rand.NewPCG(seed, seed>>1)),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.Client.AgentID != "" {
		auth, err := client.Authenticate(ctx, cfg.Client.AgentID, cfg.Client.APIKey)
		if err != nil {
			log.Fatalf("Authentication failed: %v", err)
		}
		log.Printf("Authenticated as %s, token expires %s", cfg.Client.AgentID, auth.ExpiresAt)
	}

	result, err := client.PlayAuto(ctx, cfg.Client.Duration, tokenburner.Strategy(cfg.Client.Strategy))
	if err != nil {
		log.Fatalf("Game failed: %v", err)
	}

	fmt.Println("Game finished:")
	for _, key := range []string{"gameId", "status", "finalScore", "tokensBurned", "totalActions", "duration"} {
		if v, ok := result[key]; ok {
			fmt.Printf("  %-13s %v\n", key+":", v)
		}
	}

	board, err := client.GetLeaderboard(ctx)
	if err != nil {
		log.Fatalf("Failed to get leaderboard: %v", err)
	}

	fmt.Println("Leaderboard:")
	for i, entry := range board {
		if i == 5 {
			break
		}
		fmt.Printf("  %d. %-20s %10d points %8d tokens\n", i+1, entry.AgentID, entry.Score, entry.TokensBurned)
	}
}
