package rules

import "errors"

var (
	// ErrInvalidThreshold indicates a threshold with no bounds, a non-finite bound, or min above max.
	ErrInvalidThreshold = errors.New("rules: threshold needs min or max, with min <= max")
	// ErrUnknownRuleType indicates a rule type outside angle|distance|distance_ratio|angle_between_vectors.
	ErrUnknownRuleType = errors.New("rules: unknown rule type")
	// ErrMissingField indicates a rule lacks a field its type requires.
	ErrMissingField = errors.New("rules: missing required field")
	// ErrInvalidIndex indicates a keypoint reference that is negative, non-integral or malformed.
	ErrInvalidIndex = errors.New("rules: invalid keypoint reference")
	// ErrEmptyRuleSet indicates a rule set with no rules.
	ErrEmptyRuleSet = errors.New("rules: rule set must contain at least one rule")
	// ErrDuplicateRule indicates two rules sharing a name.
	ErrDuplicateRule = errors.New("rules: duplicate rule name")
	// ErrInvalidOffset indicates a vertical angle rule whose offset is not a positive finite number.
	ErrInvalidOffset = errors.New("rules: vertical offset must be positive and finite")
)
