// Command formfold re-expresses structured data across notations, compares
// their token costs and mints shareable session tokens.
//
// Usage:
//
//	formfold convert -from json -to toon [-indent N] [-delim c] [file]
//	formfold stats [-indent N] [-delim c] [file]
//	formfold share [file]
//	formfold open <token>
//	formfold serve [-addr :8080]
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/formfold/formfold/cost"
	"github.com/formfold/formfold/format"
	"github.com/formfold/formfold/playground"
	"github.com/formfold/formfold/session"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "convert":
		err = runConvert(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "share":
		err = runShare(os.Args[2:])
	case "open":
		err = runOpen(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "formfold:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: formfold <convert|stats|share|open|serve> [flags]")
}

func adapters() map[format.ID]format.Adapter {
	return map[format.ID]format.Adapter{
		format.JSON: format.JSONAdapter{},
		format.TOON: format.TOONAdapter{},
		format.YAML: format.YAMLAdapter{},
		format.CSV:  format.CSVAdapter{},
	}
}

// readInput reads the trailing file argument, or stdin when absent.
func readInput(args []string) (string, error) {
	if len(args) > 1 {
		return "", fmt.Errorf("expected at most one input file")
	}
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func optionFlags(fs *flag.FlagSet) (*int, *string) {
	indent := fs.Int("indent", format.DefaultIndent, "spaces per nesting level (0-8)")
	delim := fs.String("delim", ",", "cell delimiter: ',' '\\t' or '|'")
	return indent, delim
}

func buildOptions(indent int, delim string) (format.Options, error) {
	opts := format.Options{Indent: indent, Delimiter: format.DefaultDelimiter}
	switch delim {
	case ",", "|", "\t":
		opts.Delimiter = delim[0]
	case "tab":
		opts.Delimiter = '\t'
	default:
		return opts, fmt.Errorf("unsupported delimiter %q", delim)
	}
	return opts.Normalize(), nil
}

func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	from := fs.String("from", "json", "source format")
	to := fs.String("to", "toon", "target format")
	indent, delim := optionFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts, err := buildOptions(*indent, *delim)
	if err != nil {
		return err
	}
	src, ok := adapters()[format.ID(*from)]
	if !ok {
		return fmt.Errorf("unknown source format %q", *from)
	}
	dst, ok := adapters()[format.ID(*to)]
	if !ok {
		return fmt.Errorf("unknown target format %q", *to)
	}
	parser, ok := src.(format.Parser)
	if !ok {
		return fmt.Errorf("%s is not a parseable source", *from)
	}

	text, err := readInput(fs.Args())
	if err != nil {
		return err
	}
	doc, err := parser.Parse(text)
	if err != nil {
		return err
	}
	out := dst.Serialize(doc, opts)
	if out == "" && format.ID(*to) != format.JSON {
		return fmt.Errorf("document cannot be expressed as %s", *to)
	}
	fmt.Println(out)
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	indent, delim := optionFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts, err := buildOptions(*indent, *delim)
	if err != nil {
		return err
	}
	text, err := readInput(fs.Args())
	if err != nil {
		return err
	}

	doc, err := (format.JSONAdapter{}).Parse(text)
	if err != nil {
		return err
	}

	var counter cost.Counter
	if tk, err := cost.NewTiktokenCounter(); err == nil {
		counter = tk
	} else {
		fmt.Fprintln(os.Stderr, "formfold: tokenizer unavailable, using estimate")
		counter = cost.HeuristicCounter{}
	}

	canonical := (format.JSONAdapter{}).Serialize(doc, opts)
	base := counter.Count(canonical)

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	bold.Printf("%-6s %8s %10s\n", "FORMAT", "TOKENS", "SAVINGS")
	fmt.Printf("%-6s %8d %10s\n", "json", base, "-")
	all := adapters()
	for _, id := range []format.ID{format.TOON, format.YAML, format.CSV} {
		out := all[id].Serialize(doc, opts)
		if out == "" {
			fmt.Printf("%-6s %8s %10s\n", id, "-", "-")
			continue
		}
		n := counter.Count(out)
		s := cost.Compare(base, n)
		if s == nil {
			fmt.Printf("%-6s %8d %10s\n", id, n, "-")
			continue
		}
		line := fmt.Sprintf("%-6s %8d %9s%%", id, n, s.Sign+s.Percent)
		if s.Improvement {
			green.Println(line)
		} else {
			red.Println(line)
		}
	}
	return nil
}

func runShare(args []string) error {
	fs := flag.NewFlagSet("share", flag.ExitOnError)
	indent, delim := optionFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts, err := buildOptions(*indent, *delim)
	if err != nil {
		return err
	}
	text, err := readInput(fs.Args())
	if err != nil {
		return err
	}
	if _, err := (format.JSONAdapter{}).Parse(text); err != nil {
		return err
	}
	token, err := session.Encode(session.State{
		JSON:      text,
		Delimiter: string(rune(opts.Delimiter)),
		Indent:    opts.Indent,
	})
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runOpen(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one share token")
	}
	state, ok := session.Decode(args[0])
	if !ok {
		return fmt.Errorf("share token is not decodable")
	}
	fmt.Println(state.JSON)
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()
	return playground.NewServer(log).Listen(*addr)
}
