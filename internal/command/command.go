// Package command classifies inbound chat text into bot commands.
//
// Matching runs against an ordered list of grammars and the first full match
// wins; anything that matches no grammar end to end is Unknown. Leading and
// trailing whitespace is tolerated, keywords are case-insensitive.
package command

import (
	"regexp"

	"github.com/Hxryknight/Finanzasbot/internal/core"
)

// Command is one parsed variant: Record, Balance, Help or Unknown.
type Command interface {
	command()
}

type (
	// Record asks to append one income or expense row.
	Record struct {
		Kind     core.Kind
		Amount   core.Money
		Category string
		Method   string
		Note     string
	}

	// Balance asks for the totals of one month. An empty Month means the
	// current month at dispatch time.
	Balance struct {
		Month string
	}

	Help struct{}

	Unknown struct {
		Text string
	}
)

func (Record) command()  {}
func (Balance) command() {}
func (Help) command()    {}
func (Unknown) command() {}

var (
	reHelp    = regexp.MustCompile(`(?i)^\s*help\s*$`)
	reExpense = regexp.MustCompile(`(?i)^\s*expense\s+(?P<amount>[0-9]+(?:[.,][0-9]{1,2})?)\s+(?P<cat>\S+)\s+(?P<method>\S+)(?:\s+"(?P<note>[^"]*)")?\s*$`)
	reIncome  = regexp.MustCompile(`(?i)^\s*income\s+(?P<amount>[0-9]+(?:[.,][0-9]{1,2})?)\s+(?P<cat>\S+)\s+(?P<method>\S+)(?:\s+"(?P<note>[^"]*)")?\s*$`)
	reBalance = regexp.MustCompile(`(?i)^\s*balance(?:\s+(?P<month>\d{4}-\d{2}))?\s*$`)
)

// Parse classifies raw message text. The only error path is an amount token
// that survives the grammar but fails numeric parsing, which the grammar
// itself prevents today.
func Parse(text string) (Command, error) {
	if reHelp.MatchString(text) {
		return Help{}, nil
	}
	if m := reExpense.FindStringSubmatch(text); m != nil {
		return newRecord(core.Expense, m)
	}
	if m := reIncome.FindStringSubmatch(text); m != nil {
		return newRecord(core.Income, m)
	}
	if m := reBalance.FindStringSubmatch(text); m != nil {
		return Balance{Month: m[1]}, nil
	}
	return Unknown{Text: text}, nil
}

func newRecord(kind core.Kind, m []string) (Command, error) {
	cents, err := core.ParseDecimalToCents(m[1])
	if err != nil {
		return nil, err
	}
	return Record{
		Kind:     kind,
		Amount:   core.Money{Cents: cents},
		Category: m[2],
		Method:   m[3],
		Note:     m[4],
	}, nil
}
