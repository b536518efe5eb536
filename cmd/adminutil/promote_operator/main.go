package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/boostpool/boostpool/internal/db"
)

func main() {
	email := flag.String("email", "", "Email of the worker to promote to team operator")
	teamID := flag.String("team", "", "Team id the worker belongs to")
	flag.Parse()

	if *email == "" || *teamID == "" {
		log.Fatalf("usage: go run cmd/adminutil/promote_operator/main.go -email worker@example.com -team <team-id>")
	}

	_ = godotenv.Load()
	ctx := context.Background()
	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	var workerID string
	err = pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1 AND role = 'worker'`, *email).Scan(&workerID)
	if err != nil {
		log.Fatalf("worker not found for email %s: %v", *email, err)
	}

	tag, err := pool.Exec(ctx,
		`UPDATE team_members SET role = 'operator' WHERE team_id = $1 AND worker_id = $2`,
		*teamID, workerID)
	if err != nil {
		log.Fatalf("failed to promote worker: %v", err)
	}
	if tag.RowsAffected() == 0 {
		log.Fatalf("worker %s is not a member of team %s", *email, *teamID)
	}

	fmt.Printf("Promoted %s to operator of team %s\n", *email, *teamID)
}
