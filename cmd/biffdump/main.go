package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/yamitzky/biffrec/biff"
)

var version = "dev"

type app struct {
	stdout, stderr io.Writer

	configPath string
	flags      settings
	unnumbered bool
	verbose    bool

	cfg    settings
	logger zerolog.Logger
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "biffdump: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "biffdump",
		Short:         "Inspect and rewrite BIFF8 workbook streams",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "TOML file with decoder settings")
	pf.StringVar(&a.flags.password, "password", "", "password of an encrypted stream")
	pf.BoolVar(&a.flags.strict, "strict", false, "require zero bytes after the final EOF")
	pf.BoolVar(&a.flags.keepRegenerable, "keep-regenerable", false, "keep INDEX and DBCELL records")
	pf.BoolVar(&a.flags.detachFormulaStrings, "detach-formula-strings", false, "do not attach STRING records to formulas")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log tolerated anomalies")

	dump := &cobra.Command{
		Use:   "dump <stream>",
		Short: "Hex dump every physical record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFile(args[0], func(f io.Reader) error {
				return biff.Dump(f, a.stdout, a.unnumbered)
			})
		},
	}
	dump.Flags().BoolVarP(&a.unnumbered, "unnumbered", "u", false, "omit offsets")

	root.AddCommand(
		dump,
		&cobra.Command{
			Use:   "count <stream>",
			Short: "Count physical records by name",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withFile(args[0], a.count)
			},
		},
		&cobra.Command{
			Use:   "records <stream>",
			Short: "List the logical records of a stream",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withFile(args[0], a.records)
			},
		},
		&cobra.Command{
			Use:   "roundtrip <stream> <output>",
			Short: "Decode a stream and write it back out",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.roundtrip(args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "inspect <file>",
			Short: "Guess the format of a file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				format, err := biff.InspectFile(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, biff.FileFormatDescriptions[format])
				return nil
			},
		},
	)
	return root
}

// setup merges the config file with the flags given on the command line and
// builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := settings{}
	if a.configPath != "" {
		var err error
		if cfg, err = loadConfig(a.configPath); err != nil {
			return err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("password") {
		cfg.password = a.flags.password
	}
	if flags.Changed("strict") {
		cfg.strict = a.flags.strict
	}
	if flags.Changed("keep-regenerable") {
		cfg.keepRegenerable = a.flags.keepRegenerable
	}
	if flags.Changed("detach-formula-strings") {
		cfg.detachFormulaStrings = a.flags.detachFormulaStrings
	}
	a.cfg = cfg

	level := zerolog.InfoLevel
	if a.verbose {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        a.stderr,
		NoColor:    true,
		TimeFormat: time.RFC3339,
	}
	a.logger = zerolog.New(output).Level(level).With().Timestamp().Str("app", "biffdump").Logger()
	return nil
}

func withFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

func (a *app) count(r io.Reader) error {
	counts, err := biff.TallyRecords(r)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Record", "Count"})
	total := 0
	for _, c := range counts {
		t.AppendRow(table.Row{c.Name, c.Count})
		total += c.Count
	}
	t.AppendFooter(table.Row{"Total", total})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignCenter},
	})
	t.SetOutputMirror(a.stdout)
	t.Render()
	return nil
}

func (a *app) records(r io.Reader) error {
	s, err := biff.Open(r, a.cfg.options(&a.logger))
	if err != nil {
		return err
	}
	defer s.Close()

	reg := biff.DefaultRegistry()
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Sid", "Name", "Size", "Depth", "Detail"})
	if fp := s.FilePass(); fp != nil {
		t.AppendRow(table.Row{"", fmt.Sprintf("%04x", fp.Sid()), "FILEPASS", fp.RecordSize(), "", "RC4"})
	}
	n := 0
	for rec, err := range s.Records() {
		if err != nil {
			return errors.Wrapf(err, "record %d", n)
		}
		t.AppendRow(table.Row{n, fmt.Sprintf("%04x", rec.Sid()), reg.Name(rec.Sid()), rec.RecordSize(), s.Depth(), describe(rec)})
		n++
	}
	t.SetOutputMirror(a.stdout)
	t.Render()
	return nil
}

// describe summarizes the fields worth seeing in a record listing.
func describe(rec biff.Record) string {
	switch r := rec.(type) {
	case *biff.BOFRecord:
		return fmt.Sprintf("%s, BIFF %s", r.TypeName(), biff.BiffTextFromNum(r.BiffVersion()))
	case *biff.BoundSheetRecord:
		return fmt.Sprintf("%s %q", r.SheetTypeName(), r.Name.Text)
	}
	if c, ok := rec.(biff.CellValueRecord); ok && biff.IsCellSid(rec.Sid()) {
		row, col, _ := c.Cell()
		return fmt.Sprintf("cell row %d col %d", row, col)
	}
	return ""
}

func (a *app) roundtrip(in, out string) error {
	src, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	s, err := biff.Open(bytes.NewReader(src), a.cfg.options(&a.logger))
	if err != nil {
		return err
	}
	defer s.Close()
	recs, err := s.ReadAll()
	if err != nil {
		return errors.Wrapf(err, "decode %s", in)
	}

	wopts := &biff.WriteOptions{Logger: &a.logger}
	if s.FilePass() != nil {
		wopts.Password = a.cfg.password
		if wopts.Password == "" {
			wopts.Password = biff.DefaultPassword
		}
	}
	var buf bytes.Buffer
	if err := biff.Encode(&buf, recs, wopts); err != nil {
		return errors.Wrapf(err, "encode %s", out)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "wrote %d records (%d bytes) to %s\n", len(recs), buf.Len(), out)
	if bytes.Equal(src, buf.Bytes()) {
		fmt.Fprintln(a.stdout, "output is identical to the input")
	}
	return nil
}
