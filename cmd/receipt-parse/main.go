// Command receipt-parse reads receipt text from a file or stdin and prints the
// parsed line items as JSON.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/pantry-tracker/internal/lineitems"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := ff.NewFlagSet("receipt-parse")
	var (
		rulesPath = fs.StringLong("rules", "", "YAML file with receipt parsing rules (optional)")
		pretty    = fs.BoolLong("pretty", "Indent the JSON output")
	)

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("RECEIPT_PARSE")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs, "receipt-parse [FLAGS] [FILE]"))
		return err
	}

	var rules *lineitems.Rules
	if *rulesPath != "" {
		r, err := lineitems.LoadRules(*rulesPath)
		if err != nil {
			return err
		}
		rules = r
	}

	var (
		text []byte
		err  error
	)
	switch rest := fs.GetArgs(); len(rest) {
	case 0:
		text, err = io.ReadAll(stdin)
	case 1:
		text, err = os.ReadFile(rest[0])
	default:
		return errors.New("at most one file may be given")
	}
	if err != nil {
		return fmt.Errorf("reading receipt text: %w", err)
	}

	items := lineitems.NewParser(rules).Parse(string(text))
	if len(items) == 0 {
		return errors.New("no items found")
	}

	enc := json.NewEncoder(stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(items)
}
