package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pquerna/otp/totp"
)

func main() {
	newKey := flag.Bool("new", false, "Generate a fresh TOTP secret instead of a code")
	flag.Parse()

	if *newKey {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      "bridge-backend",
			AccountName: "admin",
		})
		if err != nil {
			fmt.Printf("Error generating TOTP key: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Secret: %s\n", key.Secret())
		fmt.Printf("URL: %s\n", key.URL())
		fmt.Println("\nPut the secret in admin.totpSecret (or ADMIN_TOTP_SECRET).")
		return
	}

	secret := os.Getenv("ADMIN_TOTP_SECRET")
	if secret == "" {
		fmt.Println("ADMIN_TOTP_SECRET is not set; run with -new to create a secret first")
		os.Exit(1)
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		fmt.Printf("Error generating TOTP code: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Current TOTP Code: %s\n", code)
	fmt.Printf("Valid for: ~30 seconds\n")
}
