// Command hash-generator prints bcrypt hashes for seeding users directly in
// the database, for example an initial admin account:
//
//	go run ./cmd/hash-generator -cost 12 'correct horse battery'
//
// With no arguments it hashes each line read from stdin.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/phrazzld/tasktracker-api/internal/service/auth"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "hash-generator: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("hash-generator", flag.ContinueOnError)
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost factor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	hasher := auth.NewBcryptVerifier(*cost)

	passwords := fs.Args()
	if len(passwords) == 0 {
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				passwords = append(passwords, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read passwords: %w", err)
		}
	}
	if len(passwords) == 0 {
		return fmt.Errorf("no passwords given")
	}

	for _, password := range passwords {
		hash, err := hasher.Hash(password)
		if err != nil {
			return err
		}
		if err := hasher.Compare(hash, password); err != nil {
			return fmt.Errorf("generated hash failed verification: %w", err)
		}
		fmt.Fprintln(stdout, hash)
	}
	return nil
}
