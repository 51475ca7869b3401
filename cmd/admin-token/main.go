package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	pkgAuth "github.com/horologe/storefront-backend/pkg/auth"
	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/security"
)

// admin-token mints a back office bearer token, or with -hash-password reads a
// password from stdin and prints the argon2id hash for HOROLOGE_ADMIN_PASSWORD_HASH.
// Only admin and password settings are read, so it runs without database or redis config.
func main() {
	subject := flag.String("subject", "", "operator identity recorded on admin actions (e.g. email)")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to HOROLOGE_ADMIN_TOKEN_TTL")
	hashPassword := flag.Bool("hash-password", false, "hash a password read from stdin instead of minting a token")
	flag.Parse()

	_ = godotenv.Load()

	if *hashPassword {
		if err := printPasswordHash(); err != nil {
			fmt.Fprintf(os.Stderr, "hashing password: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var adminCfg config.AdminConfig
	if err := envconfig.Process(config.EnvPrefix, &adminCfg); err != nil {
		fmt.Fprintf(os.Stderr, "parsing admin config: %v\n", err)
		os.Exit(1)
	}
	if *ttl > 0 {
		adminCfg.TokenTTL = *ttl
	}

	token, err := pkgAuth.MintAdminToken(adminCfg, time.Now(), pkgAuth.AdminTokenPayload{Subject: *subject})
	if err != nil {
		fmt.Fprintf(os.Stderr, "minting token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func printPasswordHash() error {
	var pwCfg config.PasswordConfig
	if err := envconfig.Process(config.EnvPrefix, &pwCfg); err != nil {
		return fmt.Errorf("parsing password config: %w", err)
	}
	hasher, err := security.NewHasher(pwCfg)
	if err != nil {
		return err
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading password: %w", err)
	}
	encoded, err := hasher.Hash(strings.TrimRight(line, "\r\n"))
	if err != nil {
		return err
	}
	fmt.Println(encoded)
	return nil
}
