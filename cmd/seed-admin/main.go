// Command seed-admin provisions or updates a dashboard principal. Intended
// for bootstrapping the first admin account:
//
//	DATABASE_URL=... ADMIN_PASSWORD=... go run ./cmd/seed-admin -email ana@example.org -role admin
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/redsalud/turnos-board/internal/auth"
	"github.com/redsalud/turnos-board/internal/domain"
	"github.com/redsalud/turnos-board/internal/repository/postgres"
)

func main() {
	email := flag.String("email", "", "principal email (required)")
	role := flag.String("role", "admin", "role: admin or viewer")
	flag.Parse()

	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *role != string(domain.RoleAdmin) && *role != string(domain.RoleViewer) {
		log.Fatalf("unknown role %q", *role)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("ADMIN_PASSWORD is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	profile := &domain.Profile{Email: *email, Role: domain.Role(*role)}
	repo := postgres.NewProfileRepo(db)
	if err := repo.CreateProfile(context.Background(), profile, auth.HashPassword(password)); err != nil {
		log.Fatalf("create profile: %v", err)
	}
	log.Printf("Profile ready: %s (%s) user_id=%s", profile.Email, profile.Role, profile.UserID)
}
