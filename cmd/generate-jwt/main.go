package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"bridge-backend/internal/config"
	"bridge-backend/internal/handlers"
)

func main() {
	userID := flag.String("user", "", "User ID to embed in the token")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	if *userID == "" {
		log.Fatal("Please specify -user <user-id>")
	}

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	tokenString, err := handlers.GenerateJWTToken(*userID)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	expiryHours := config.AppConfig.Auth.ExpiryHours
	if expiryHours <= 0 {
		expiryHours = 24
	}

	fmt.Println("============================================================")
	fmt.Println("JWT Token Generated for Testing")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Printf("  User ID: %s\n", *userID)
	fmt.Printf("  Expires: %s\n", time.Now().Add(time.Duration(expiryHours)*time.Hour))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  curl -H 'Authorization: Bearer %s' http://localhost:8080/api/deposits\n", tokenString)
}
