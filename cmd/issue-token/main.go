package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/garyjia/school-fees/internal/auth"
	"github.com/garyjia/school-fees/internal/config"
	"github.com/garyjia/school-fees/internal/domain/entity"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config.yaml")
	id := flag.String("id", "", "Caller id (student id for students)")
	role := flag.String("role", entity.RoleAdmin, "Caller role: admin, teacher, student or parent")
	name := flag.String("name", "", "Display name carried in the token")
	ttl := flag.Duration("ttl", 0, "Token lifetime (defaults to auth.token_ttl)")
	flag.Parse()

	if *id == "" {
		fmt.Fprintf(os.Stderr, "ERROR: --id is required\n")
		fmt.Fprintf(os.Stderr, "Usage: issue-token --id <caller-id> [--role admin] [--name <name>] [--ttl 12h]\n")
		os.Exit(1)
	}
	if !entity.IsValidRole(*role) {
		fmt.Fprintf(os.Stderr, "ERROR: unknown role %q\n", *role)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Auth.Has("bearer") {
		fmt.Fprintf(os.Stderr, "ERROR: the bearer strategy is not enabled in auth.strategies\n")
		os.Exit(1)
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.Auth.TokenTTL
	}

	bearer := auth.NewBearer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	token, err := bearer.IssueToken(entity.Caller{ID: *id, Role: *role, Name: *name}, lifetime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Token for %s (%s), expires %s\n", *id, *role, time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
}
