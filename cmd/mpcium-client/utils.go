package main

import (
	"fmt"
	"syscall"
	"unicode"

	"golang.org/x/term"
)

const minPassphraseLength = 12

func ContainsAtLeastNSpecial(s string, n int) bool {
	count := 0
	for _, r := range s {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			count++
			if count >= n {
				return true
			}
		}
	}
	return false
}

// validatePassphrase enforces the minimum strength for key encryption.
func validatePassphrase(passphrase string) error {
	if len(passphrase) < minPassphraseLength {
		return fmt.Errorf("passphrase too short (minimum %d characters)", minPassphraseLength)
	}
	if !ContainsAtLeastNSpecial(passphrase, 2) {
		return fmt.Errorf("passphrase must contain at least 2 special characters")
	}
	return nil
}

// requestPassword prompts twice for a passphrase without echoing it.
func requestPassword() (string, error) {
	fmt.Print("Enter passphrase to encrypt private key: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if err := validatePassphrase(string(first)); err != nil {
		return "", err
	}

	fmt.Print("Confirm passphrase: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase confirmation: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	return string(first), nil
}
