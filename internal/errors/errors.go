package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a report pipeline error.
type Kind string

const (
	KindInvalidPeriod       Kind = "invalid_period"
	KindUnknownUnit         Kind = "unknown_unit"
	KindEmptyAccount        Kind = "empty_account"
	KindEmptyUnit           Kind = "empty_unit"
	KindDeliveryFailure     Kind = "delivery_failure"
	KindExclusionRuleMisuse Kind = "exclusion_rule_misuse"
	KindFetchFailure        Kind = "fetch_failure"
	KindRenderFailure       Kind = "render_failure"
)

// ReportError is an error raised while producing a unit report.
type ReportError struct {
	Kind    Kind                   `json:"kind"`
	Unit    string                 `json:"unit,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *ReportError) Error() string {
	if e == nil {
		return "unknown report error"
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Unit != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Kind, e.Unit, msg)
	} else {
		msg = fmt.Sprintf("[%s] %s", e.Kind, msg)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *ReportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches any ReportError of the same kind, so the package sentinels work
// with errors.Is.
func (e *ReportError) Is(target error) bool {
	t, ok := target.(*ReportError)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Kind == e.Kind
}

// WithUnit returns a copy of e tagged with a unit name.
func (e *ReportError) WithUnit(unit string) *ReportError {
	c := *e
	c.Unit = unit
	return &c
}

// Sentinels, one per kind.
var (
	ErrInvalidPeriod       = &ReportError{Kind: KindInvalidPeriod, Message: "invalid report period"}
	ErrUnknownUnit         = &ReportError{Kind: KindUnknownUnit, Message: "unit does not exist"}
	ErrEmptyAccount        = &ReportError{Kind: KindEmptyAccount, Message: "no ledger data for account"}
	ErrEmptyUnit           = &ReportError{Kind: KindEmptyUnit, Message: "all accounts empty"}
	ErrDeliveryFailure     = &ReportError{Kind: KindDeliveryFailure, Message: "report delivery failed"}
	ErrExclusionRuleMisuse = &ReportError{Kind: KindExclusionRuleMisuse, Message: "exclusion rule invoked for an unsupported unit"}
	ErrFetchFailure        = &ReportError{Kind: KindFetchFailure, Message: "ledger fetch failed"}
	ErrRenderFailure       = &ReportError{Kind: KindRenderFailure, Message: "report rendering failed"}
)

// NewInvalidPeriod reports a caller input error on year/month.
func NewInvalidPeriod(format string, args ...interface{}) *ReportError {
	return &ReportError{Kind: KindInvalidPeriod, Message: fmt.Sprintf(format, args...)}
}

// NewUnknownUnit reports unit ids that resolve to nothing.
func NewUnknownUnit(ids []int) *ReportError {
	return &ReportError{
		Kind:    KindUnknownUnit,
		Message: fmt.Sprintf("unit id does not exist %v", ids),
		Context: map[string]interface{}{"unit_ids": ids},
	}
}

// NewExclusionRuleMisuse reports a fund-combo rule call for a unit it does not cover.
func NewExclusionRuleMisuse(unitID int) *ReportError {
	return &ReportError{
		Kind:    KindExclusionRuleMisuse,
		Message: fmt.Sprintf("fund exclusion rule has no policy for unit %d", unitID),
		Context: map[string]interface{}{"unit_id": unitID},
	}
}

// NewFetchFailure wraps a Fetcher error for one account.
func NewFetchFailure(unit, account string, cause error) *ReportError {
	return &ReportError{
		Kind:    KindFetchFailure,
		Unit:    unit,
		Message: fmt.Sprintf("fetch account %s", account),
		Cause:   cause,
		Context: map[string]interface{}{"account": account},
	}
}

// NewRenderFailure wraps a Formatter or file system error.
func NewRenderFailure(unit, file string, cause error) *ReportError {
	return &ReportError{
		Kind:    KindRenderFailure,
		Unit:    unit,
		Message: fmt.Sprintf("render %s", file),
		Cause:   cause,
		Context: map[string]interface{}{"file": file},
	}
}

// NewDeliveryFailure wraps a Sender error. The category is attached so callers
// do not have to classify again.
func NewDeliveryFailure(unit, file string, cause error) *ReportError {
	return &ReportError{
		Kind:    KindDeliveryFailure,
		Unit:    unit,
		Message: fmt.Sprintf("send %s", file),
		Cause:   cause,
		Context: map[string]interface{}{
			"file":     file,
			"category": string(ClassifyDelivery(cause)),
		},
	}
}

// KindOf returns the kind of the first ReportError in err's chain, or "".
func KindOf(err error) Kind {
	var rErr *ReportError
	if stderrors.As(err, &rErr) {
		return rErr.Kind
	}
	return ""
}
