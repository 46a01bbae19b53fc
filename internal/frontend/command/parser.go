package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/coupledice/internal/dice"
)

// ParseResult holds the parsed command name and arguments from a text line.
type ParseResult struct {
	// Command is the first word of the input, lowercased.
	Command string
	// Args are the remaining words after the command.
	Args []string
	// RawArgs is the raw text after the command, spacing preserved.
	RawArgs string
}

// Parse splits a text line into a command and arguments.
//
// Postcondition: Returns a ParseResult. If line is blank, Command is empty.
func Parse(line string) ParseResult {
	line = strings.TrimSpace(line)
	if line == "" {
		return ParseResult{}
	}

	spaceIdx := strings.IndexAny(line, " \t")
	if spaceIdx < 0 {
		return ParseResult{
			Command: strings.ToLower(line),
		}
	}

	cmd := strings.ToLower(line[:spaceIdx])
	rest := strings.TrimSpace(line[spaceIdx+1:])

	var args []string
	if rest != "" {
		args = strings.Fields(rest)
	}

	return ParseResult{
		Command: cmd,
		Args:    args,
		RawArgs: rest,
	}
}

// ErrAddUsage is returned by ParseAdd when the arguments are too few.
var ErrAddUsage = errors.New("usage: add <payer|meal|activity> <emoji> <label> [*weight]")

// ParseAdd turns the arguments of the add command into a candidate.
// The label is every word after the emoji; a final "*N" word sets the weight.
// Range checks are left to dice.ValidateCandidate.
//
// Postcondition: Returns a Candidate or ErrAddUsage / a weight parse error.
func ParseAdd(args []string) (dice.Candidate, error) {
	if len(args) < 3 {
		return dice.Candidate{}, ErrAddUsage
	}
	c := dice.Candidate{Category: args[0], Emoji: args[1]}
	labelWords := args[2:]

	if last := labelWords[len(labelWords)-1]; len(labelWords) > 1 && strings.HasPrefix(last, "*") {
		w, err := strconv.Atoi(last[1:])
		if err != nil {
			return dice.Candidate{}, fmt.Errorf("weight %q is not a whole number", last[1:])
		}
		c.Weight = &w
		labelWords = labelWords[:len(labelWords)-1]
	}
	c.Label = strings.Join(labelWords, " ")
	return c, nil
}
