// Command mrz-token issues an access token for an API client of mrz-service.
// It signs with the same configuration the service validates with.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mrzscan/mrzscan-backend/internal/auth/jwt"
	"github.com/mrzscan/mrzscan-backend/pkg/config"
)

func main() {
	subject := flag.String("subject", "", "client identifier recorded in the audit log (required)")
	role := flag.String("role", "scanner", "client role")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "mrz-token: -subject is required")
		os.Exit(1)
	}

	cfg, err := config.Load("mrz-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	m := jwt.NewManager(&cfg.JWT)
	if !m.RoleAllowed(*role) {
		fmt.Fprintf(os.Stderr, "mrz-token: role %q is not admitted by jwt.roles %v\n", *role, cfg.JWT.Roles)
		os.Exit(1)
	}

	token, err := m.GenerateAccessToken(*subject, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(token)
}
