package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/zoomi/household-auth/internal/util"
)

// Prints a users row for local fixtures. The row has no profile, which is
// how a profile-missing session is reproduced against a dev backend.
func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/hash-password.go <email> <password>\n")
		os.Exit(1)
	}

	email, password := os.Args[1], os.Args[2]
	hash, err := util.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("INSERT INTO users (id, email, password_hash) VALUES ('%s', '%s', '%s');\n",
		uuid.NewString(), email, hash)
}
