package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData marks a window that cannot be evaluated with the bars at hand.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrUpstreamUnavailable marks a market-data or news collaborator failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// DataQualityError reports malformed bars or unusable history for a symbol.
type DataQualityError struct {
	Symbol string
	Stage  string
	Reason string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality [%s/%s]: %s", e.Symbol, e.Stage, e.Reason)
}

// UpstreamError wraps a collaborator failure. It matches ErrUpstreamUnavailable with errors.Is.
type UpstreamError struct {
	Source string
	Symbol string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable for %s: %v", e.Source, e.Symbol, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamUnavailable }

// ConfigError is a fatal configuration problem detected at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}
