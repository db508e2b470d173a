// Command seed provisions an admin account: it creates the account when the
// email is unknown and grants it the configured admin role either way.
//
//	seed -email root@example.com [-password ...] [-name ...] [-d DSN]
//
// The password is read from the terminal when omitted for a new account.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/buddyauth/internal/common"
	"github.com/dmitrijs2005/buddyauth/internal/flagx"
	"github.com/dmitrijs2005/buddyauth/internal/logging"
	"github.com/dmitrijs2005/buddyauth/internal/server/config"
	"github.com/dmitrijs2005/buddyauth/internal/server/mail"
	"github.com/dmitrijs2005/buddyauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/buddyauth/internal/server/services"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatalf("seed: %v", err)
	}
}

func run(ctx context.Context, args []string) error {
	var email, password, name string

	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.StringVar(&email, "email", "", "admin email")
	fs.StringVar(&password, "password", "", "admin password (prompted when empty)")
	fs.StringVar(&name, "name", "Admin", "profile name for a new account")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-email", "-password", "-name"})); err != nil {
		return err
	}
	if email == "" {
		return fmt.Errorf("-email is required")
	}

	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		return err
	}

	if password == "" {
		if _, err := m.Users(db).GetByEmail(ctx, services.NormalizeEmail(email)); err != nil {
			fmt.Fprint(os.Stderr, "Password: ")
			b, err := readPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			password = string(b)
			common.WipeByteArray(b)
		}
	}

	// Only account provisioning is used; no tokens are minted.
	users := services.NewUserService(db, m, nil, nil, nil, mail.NewLogMailer(logger), logger, services.UserServiceConfig{})

	created, err := users.ProvisionAdmin(ctx, email, password, name, cfg.AdminRole)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("created admin %s\n", services.NormalizeEmail(email))
	} else {
		fmt.Printf("promoted %s to %s\n", services.NormalizeEmail(email), cfg.AdminRole)
	}
	return nil
}
