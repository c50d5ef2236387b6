package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/flagx"
)

var serverFlags = []string{"-a", "-d", "-s", "-t", "-k", "-l", "-secure", "-bu", "-ba"}

// parseFlags populates Config fields from command-line flags.
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   database DSN (postgres://..., sqlite:path)
//	-s string   session cookie HMAC secret
//	-t int      session validity, minutes
//	-k int      bcrypt cost
//	-l string   log format (json, text, zap, zap-dev)
//	-secure     set the Secure attribute on session cookies
//	-bu string  bootstrap password of the "user" seed account
//	-ba string  bootstrap password of the "admin" seed account
//
// Only the flags above are considered; anything else in args is left to other
// components. The session validity is given in minutes and converted.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, serverFlags)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionValidity := fs.Int("t", int(config.SessionValidityDuration.Minutes()), "session validity (in minutes)")

	fs.IntVar(&config.PasswordHashCost, "k", config.PasswordHashCost, "bcrypt cost")
	fs.StringVar(&config.LogFormat, "l", config.LogFormat, "log format")
	fs.BoolVar(&config.SecureCookies, "secure", config.SecureCookies, "secure cookies")
	fs.StringVar(&config.BootstrapUserPassword, "bu", config.BootstrapUserPassword, "bootstrap user password")
	fs.StringVar(&config.BootstrapAdminPassword, "ba", config.BootstrapAdminPassword, "bootstrap admin password")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionValidityDuration = time.Duration(*sessionValidity) * time.Minute
}
