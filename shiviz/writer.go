package shiviz

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// InputFileRegex is the parsing regex ShiViz reads from the first line of
// its input file.
const InputFileRegex = `(?<host>\S*) (?<clock>\{.*\})\n(?<event>.*)`

// Write renders events as a ShiViz input file: the regex header, a blank
// delimiter line (the "multiple executions" separator), then two lines per
// event.
func Write(w io.Writer, events []Event) error {
	if _, err := fmt.Fprintf(w, "%s\n\n", InputFileRegex); err != nil {
		return errors.Wrap(err, "writing visualizer header")
	}
	for _, event := range events {
		clock, err := json.Marshal(event.Clock)
		if err != nil {
			return errors.Wrap(err, "encoding vector clock")
		}
		if _, err := fmt.Fprintf(w, "%s %s\n%s\n", event.Host, clock, event.Description); err != nil {
			return errors.Wrap(err, "writing visualizer event")
		}
	}
	return nil
}
