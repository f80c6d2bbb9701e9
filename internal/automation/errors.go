package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrInvalidExpression) {
//	    // report the offending config entry
//	}
var (
	// ErrInvalidExpression is returned when an expression does not compile.
	ErrInvalidExpression = errors.New("automation: invalid expression")

	// ErrEvaluation is returned when an expression fails at run time or
	// yields a value of the wrong type.
	ErrEvaluation = errors.New("automation: evaluation failed")

	// ErrInvalidAction is returned when an action definition is incomplete.
	ErrInvalidAction = errors.New("automation: invalid action")

	// ErrInvalidTrigger is returned when a trigger definition is incomplete.
	ErrInvalidTrigger = errors.New("automation: invalid trigger")
)
