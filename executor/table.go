package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/quilldb/quill"
	"github.com/quilldb/quill/query"
)

// TableFormatter renders a Relation as a markdown table, grounded on the
// teacher's TableFormatter (datalog/executor/table_formatter.go), adapted
// from datalog.Identity/datalog.Keyword to this module's quill.Identity/
// quill.Keyword.
type TableFormatter struct {
	MaxWidth       int
	TruncateString string
}

// NewTableFormatter builds a formatter with the teacher's default widths.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{MaxWidth: 50, TruncateString: "..."}
}

// FormatRelation renders rel as a markdown table string.
func (tf *TableFormatter) FormatRelation(rel Relation) string {
	if rel == nil || rel.IsEmpty() {
		return "_Empty relation_"
	}

	var tuples []Tuple
	it := rel.Iterator()
	for it.Next() {
		tuples = append(tuples, it.Tuple())
	}
	return tf.formatTable(rel.Symbols(), tuples)
}

func (tf *TableFormatter) formatTable(columns []query.Symbol, tuples []Tuple) string {
	var sb strings.Builder
	table := tablewriter.NewTable(&sb,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(tw.AlignNone),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)

	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = string(c)
	}
	table.Header(header)

	for _, t := range tuples {
		row := make([]string, len(t))
		for i, v := range t {
			row[i] = tf.formatValue(v)
		}
		table.Append(row)
	}
	table.Render()
	return sb.String()
}

// RelationSummary returns a compact, colorized one-line summary, mirroring
// the teacher's MaterializedRelation.String.
func RelationSummary(rel Relation) string {
	cols := make([]string, len(rel.Symbols()))
	for i, c := range rel.Symbols() {
		cols[i] = string(c)
	}

	count := rel.Size()
	var countStr string
	switch {
	case count == 0:
		countStr = color.RedString("%d", count)
	case count < 100:
		countStr = color.GreenString("%d", count)
	case count < 10000:
		countStr = color.YellowString("%d", count)
	default:
		countStr = color.RedString("%d", count)
	}

	return fmt.Sprintf("%s%s%s%s%s Tuples%s",
		color.BlueString("Relation(["),
		color.CyanString(strings.Join(cols, " ")),
		color.BlueString("], "),
		"",
		countStr,
		color.BlueString(")"))
}

// PrintRelation writes a relation's markdown table to stdout, a debugging
// convenience carried over from the teacher's package-level helpers.
func PrintRelation(rel Relation) {
	fmt.Println(NewTableFormatter().FormatRelation(rel))
}

// PrintResult writes rel to stdout shaped by mode: the first cell of every
// row for FindScalar and FindCollection, a markdown table otherwise.
func PrintResult(rel Relation, mode query.FindMode) {
	if mode == query.FindScalar || mode == query.FindCollection {
		it := rel.Iterator()
		for it.Next() {
			t := it.Tuple()
			if len(t) > 0 {
				fmt.Println(NewTableFormatter().formatValue(t[0]))
			}
		}
		return
	}
	PrintRelation(rel)
}

// RelationString is an alias for FormatRelation using the default
// formatter, for callers that don't need MaxWidth control.
func RelationString(rel Relation) string {
	return NewTableFormatter().FormatRelation(rel)
}

func (tf *TableFormatter) formatValue(val interface{}) string {
	if val == nil {
		return "nil"
	}
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case int:
		s = fmt.Sprintf("%d", v)
	case int64:
		s = fmt.Sprintf("%d", v)
	case float64:
		s = fmt.Sprintf("%.2f", v)
	case bool:
		s = fmt.Sprintf("%t", v)
	case time.Time:
		s = v.Format("2006-01-02 15:04:05")
	case quill.Identity:
		s = v.String()
	case quill.Keyword:
		s = v.String()
	case quill.Symbol:
		s = v.String()
	default:
		s = fmt.Sprintf("%v", v)
	}
	if tf.MaxWidth > 0 && len(s) > tf.MaxWidth {
		cut := tf.MaxWidth - len(tf.TruncateString)
		if cut < 0 {
			cut = 0
		}
		s = s[:cut] + tf.TruncateString
	}
	return s
}
