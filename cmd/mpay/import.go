package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/usecase"
)

const defaultImportAgent = "csvimport"

func (c *cli) importCommand() *cobra.Command {
	var (
		from, to, agent, delimiter string
		tags                       []string
	)

	importCmd := &cobra.Command{
		Use:   "import FILE.csv",
		Short: "Import payments between two users from a CSV file",
		Long: `Import all rows of FILE.csv in one transaction. The file needs a header
with the columns amount, due_at and note. A positive amount is paid from
--from to --to, a negative one the other way round.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sep, size := utf8.DecodeRuneInString(delimiter)
			if size == 0 || size != len(delimiter) {
				return fmt.Errorf("delimiter must be a single character, got %q", delimiter)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := parseImportCSV(f, sep)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			a, err := c.ledger(cmd.Context())
			if err != nil {
				return err
			}

			ids, err := a.payments.Import(cmd.Context(), usecase.ImportInput{
				From:          from,
				To:            to,
				Agent:         agent,
				CreatedBy:     c.as,
				Tags:          tags,
				Rows:          rows,
				CreateMissing: true,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d transactions\n", len(ids))

			return nil
		},
	}

	importCmd.Flags().StringVar(&from, "from", "", "user paying positive amounts")
	importCmd.Flags().StringVar(&to, "to", "", "user receiving positive amounts")
	importCmd.Flags().StringVar(&agent, "agent", defaultImportAgent, "agent recorded on every row")
	importCmd.Flags().StringVar(&delimiter, "delimiter", ",", "field delimiter")
	importCmd.Flags().StringSliceVar(&tags, "tag", nil, "tag path put on every row (repeatable)")
	_ = importCmd.MarkFlagRequired("from")
	_ = importCmd.MarkFlagRequired("to")

	return importCmd
}

// parseImportCSV reads rows with an amount column and optional due_at
// (or dt_due) and note columns.
func parseImportCSV(r io.Reader, sep rune) ([]usecase.ImportRow, error) {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, err
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	amountCol, ok := columns["amount"]
	if !ok {
		return nil, errors.New("missing amount column")
	}

	dueCol, hasDue := columns["due_at"]
	if !hasDue {
		dueCol, hasDue = columns["dt_due"]
	}
	noteCol, hasNote := columns["note"]

	var rows []usecase.ImportRow

	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(record[amountCol]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %q", line, domain.ErrInvalidAmount, record[amountCol])
		}

		row := usecase.ImportRow{Amount: amount}

		if hasDue {
			if s := strings.TrimSpace(record[dueCol]); s != "" {
				due, err := parseTime(s)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				row.DueAt = &due
			}
		}

		if hasNote {
			if note := strings.TrimSpace(record[noteCol]); note != "" {
				row.Note = &note
			}
		}

		rows = append(rows, row)
	}

	return rows, nil
}
