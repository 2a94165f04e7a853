package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  Kind = "Income"
	Expense Kind = "Expense"
)

type (
	// Kind distinguishes money coming in from money going out.
	Kind string

	Money struct {
		Cents int64
	}

	// Transaction is one ledger row. Date is the local calendar day in
	// YYYY-MM-DD form, exactly as stored in the sheet.
	Transaction struct {
		Date     string
		Kind     Kind
		Amount   Money
		Category string
		Method   string
		Note     string
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidKind   = errors.New("invalid kind")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCategory = errors.New("empty category")
	ErrEmptyMethod   = errors.New("empty method")
)

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if _, err := time.Parse("2006-01-02", t.Date); err != nil {
		return ErrInvalidDate
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := validateToken(t.Category, ErrEmptyCategory); err != nil {
		return err
	}
	if err := validateToken(t.Method, ErrEmptyMethod); err != nil {
		return err
	}
	return nil
}

// validateToken enforces the single-token rule for category and method.
func validateToken(v string, emptyErr error) error {
	if strings.TrimSpace(v) == "" {
		return emptyErr
	}
	if strings.ContainsAny(v, " \t\n") {
		return errors.New("token must not contain whitespace")
	}
	return nil
}

// DateLabel formats a point in time as the stored row date.
func DateLabel(t time.Time) string {
	return t.Format("2006-01-02")
}

// MonthLabel formats a point in time as a YYYY-MM aggregation label.
func MonthLabel(t time.Time) string {
	return t.Format("2006-01")
}
