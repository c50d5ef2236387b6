// Command passwd rotates the password of an account directly in the store.
// It reads the same configuration as the server (-c, -d, -k, ...) and
// prompts for the new password twice without echo.
//
//	passwd -u admin -d postgres://...
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/flagx"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/thejerf/abtime"
)

var errMismatch = errors.New("passwords do not match")

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// promptNewPassword asks twice and returns the password once both entries
// match. The raw buffers are wiped before returning.
func promptNewPassword(w io.Writer, loginName string) (string, error) {
	ask := func(prompt string) ([]byte, error) {
		if _, err := fmt.Fprint(w, prompt); err != nil {
			return nil, err
		}
		pw, err := readPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(w)
		return pw, err
	}

	first, err := ask(fmt.Sprintf("New password for %s: ", loginName))
	defer common.WipeByteArray(first)
	if err != nil {
		return "", err
	}
	second, err := ask("Repeat: ")
	defer common.WipeByteArray(second)
	if err != nil {
		return "", err
	}

	if !bytes.Equal(first, second) {
		return "", errMismatch
	}
	return string(first), nil
}

func run(ctx context.Context, cfg *config.Config, loginName string) error {
	logger, err := logging.New(cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}

	db, rm, err := repomanager.Open(ctx, cfg.DatabaseDSN, cfg.IsSQLite(), cfg.SQLitePath())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := rm.RunMigrations(ctx, db); err != nil {
		return err
	}

	hasher, err := auth.NewPasswordHasher(cfg.PasswordHashCost)
	if err != nil {
		return err
	}

	pw, err := promptNewPassword(os.Stderr, loginName)
	if err != nil {
		return err
	}

	us := services.NewUserService(db, rm, hasher, abtime.NewRealTime(), logger)
	return us.ResetPassword(ctx, loginName, pw)
}

func main() {
	var loginName string

	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	fs.StringVar(&loginName, "u", services.SeedAdminLogin, "login name of the account")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-u"}))

	if err := run(context.Background(), config.LoadConfig(), loginName); err != nil {
		log.Fatalf("passwd: %v", err)
	}
}
