package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"octopyenergy/internal/config"
	"octopyenergy/internal/model"
)

type period struct {
	from time.Time
	to   time.Time
}

// resolvePeriod merges -from/-to with the newest stored interval end. It
// returns nil when no bound applies and the whole history is wanted.
func resolvePeriod(fromValue, toValue string, latest *time.Time, now time.Time) (*period, error) {
	var from, to time.Time
	var err error
	if strings.TrimSpace(fromValue) != "" {
		if from, err = parseTime(fromValue); err != nil {
			return nil, fmt.Errorf("invalid -from: %w", err)
		}
	}
	if strings.TrimSpace(toValue) != "" {
		if to, err = parseTime(toValue); err != nil {
			return nil, fmt.Errorf("invalid -to: %w", err)
		}
	}
	if latest != nil && latest.After(from) {
		from = *latest
	}

	if from.IsZero() && to.IsZero() {
		return nil, nil
	}
	if from.IsZero() {
		return nil, errors.New("-to requires -from")
	}
	if to.IsZero() {
		to = now
	}
	return &period{from: from, to: to}, nil
}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return model.ParseTimestamp(value)
}

func resolveAccount(flagValue string, cfg *config.Config) (string, error) {
	account := strings.TrimSpace(flagValue)
	if account == "" {
		account = strings.TrimSpace(cfg.AccountNumber)
	}
	if account == "" {
		return "", errors.New("an account number is required (-account-number or OCTOPUS_ACCOUNT_NUMBER)")
	}
	return account, nil
}
