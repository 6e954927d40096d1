package main

import (
	"fmt"
	"regexp"
	"strings"
)

// validateSymbol validates a stock symbol format
func validateSymbol(symbol string) error {
	symbolRegex := regexp.MustCompile(`^[A-Z]{1,12}$`)

	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}

	if !symbolRegex.MatchString(symbol) {
		return fmt.Errorf("symbol must be 1-12 uppercase letters")
	}

	return nil
}

// validateOutputFormat validates output format parameter
func validateOutputFormat(format string) error {
	validFormats := map[string]bool{
		"table": true,
		"json":  true,
		"csv":   true,
	}

	format = strings.ToLower(format)
	if !validFormats[format] {
		return fmt.Errorf("invalid format: %s (valid: table, json, csv)", format)
	}

	return nil
}
