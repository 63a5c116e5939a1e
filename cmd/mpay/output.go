package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/iho/mpay/internal/domain"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

// view is what a command prints: a header with rows for table and csv
// output, and records for json.
type view struct {
	header  []string
	rows    [][]string
	records any
}

func (v *view) add(cells ...string) {
	v.rows = append(v.rows, cells)
}

func render(w io.Writer, format string, v view) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v.records)
	case formatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(v.header); err != nil {
			return err
		}
		if err := cw.WriteAll(v.rows); err != nil {
			return err
		}
		return cw.Error()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(v.header, "\t"))
		for _, row := range v.rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		return tw.Flush()
	}
}

// writeTagTree draws the tag hierarchy with box characters, one tag per line
// followed by its description.
func writeTagTree(w io.Writer, roots []*domain.TagNode) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	writeTagNodes(tw, roots, "")

	return tw.Flush()
}

func writeTagNodes(w io.Writer, nodes []*domain.TagNode, indent string) {
	for i, n := range nodes {
		branch, next := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, next = "└── ", "    "
		}

		fmt.Fprintf(w, "%s%s%s\t%s\n", indent, branch, n.Tag.Name, deref(n.Tag.Description))
		writeTagNodes(w, n.Children, indent+next)
	}
}

// formatAmount prints a ledger amount with at least two decimals.
func formatAmount(d decimal.Decimal) string {
	if d.Exponent() >= -2 {
		return d.StringFixed(2)
	}

	return d.String()
}

// formatOriginal prints an original amount in its currency, e.g. "€12.50".
func formatOriginal(amount *decimal.Decimal, currency *string) string {
	if amount == nil || currency == nil {
		return ""
	}

	c := money.GetCurrency(*currency)
	if c == nil {
		return amount.String() + " " + *currency
	}

	minor := amount.Shift(int32(c.Fraction)).Round(0).IntPart()

	return money.New(minor, c.Code).Display()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}

	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	if n <= 3 {
		return s[:n]
	}

	return s[:n-3] + "..."
}
