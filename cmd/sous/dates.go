package main

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

// dateParser recognizes english phrases like "tomorrow" or "next monday".
var dateParser = newDateParser()

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseDay turns user input into a plan date. Exact YYYY-MM-DD dates pass
// through unchanged; anything else goes to the natural-language parser,
// evaluated against the current time.
func parseDay(input string) (string, error) {
	if _, err := time.Parse(snapshot.DateLayout, input); err == nil {
		return input, nil
	}
	res, err := dateParser.Parse(input, time.Now())
	if err != nil {
		return "", fmt.Errorf("cannot parse date %q: %w", input, err)
	}
	if res == nil {
		return "", fmt.Errorf("cannot parse date %q: use a phrase like 'next monday' or an exact YYYY-MM-DD date", input)
	}
	return res.Time.Format(snapshot.DateLayout), nil
}
