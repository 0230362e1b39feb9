// Package commands parses bang-prefixed chat commands against a closed
// command set. Quoted arguments survive tokenization, and a near-miss on the
// command name yields a did-you-mean suggestion instead of silence.
package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-andiamo/splitter"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ErrNotCommand marks plain chatter that does not start with '!'.
var ErrNotCommand = errors.New("not a command")

// UnknownCommandError reports a bang command outside the known set, with the
// closest known name when one is plausible.
type UnknownCommandError struct {
	Name       string
	Suggestion string
}

func (e *UnknownCommandError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unrecognized command %q (did you mean !%s?)", "!"+e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unrecognized command %q", "!"+e.Name)
}

// Command is one parsed invocation.
type Command struct {
	Name string
	Args []string
}

// Arg returns the i-th argument or "".
func (c *Command) Arg(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Rest joins the arguments from i onward; used for free-text tails like
// schedule times.
func (c *Command) Rest(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

// Parser tokenizes and validates commands against a fixed name set.
type Parser struct {
	split splitter.Splitter
	known []string
}

// NewParser builds a parser for the given command names.
func NewParser(known ...string) (*Parser, error) {
	split, err := splitter.NewSplitter(' ', splitter.DoubleQuotes)
	if err != nil {
		return nil, fmt.Errorf("failed to build tokenizer: %w", err)
	}
	names := make([]string, len(known))
	for i, name := range known {
		names[i] = strings.ToLower(name)
	}
	return &Parser{split: split, known: names}, nil
}

// maxSuggestionDistance bounds how far a typo may be from a known command
// before we stop suggesting it.
const maxSuggestionDistance = 3

// Parse turns one chat line into a Command. Plain chatter returns
// ErrNotCommand; a bang command with an unknown name returns
// *UnknownCommandError.
func (p *Parser) Parse(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "!") {
		return nil, ErrNotCommand
	}

	tokens, err := p.split.Split(text[1:])
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize %q: %w", text, err)
	}
	var fields []string
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		tok = strings.Trim(tok, `"`)
		if tok != "" {
			fields = append(fields, tok)
		}
	}
	if len(fields) == 0 {
		return nil, ErrNotCommand
	}

	name := strings.ToLower(fields[0])
	args := fields[1:]
	if len(args) == 0 {
		args = nil
	}
	for _, k := range p.known {
		if k == name {
			return &Command{Name: name, Args: args}, nil
		}
	}
	return nil, &UnknownCommandError{Name: name, Suggestion: p.suggest(name)}
}

func (p *Parser) suggest(name string) string {
	ranks := fuzzy.RankFindNormalizedFold(name, p.known)
	best := ""
	bestDistance := maxSuggestionDistance + 1
	for _, r := range ranks {
		if r.Distance < bestDistance {
			best = r.Target
			bestDistance = r.Distance
		}
	}
	return best
}
