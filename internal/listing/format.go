// Package listing renders bento catalogs, todo lists and feed history for the CLI.
package listing

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/bento/internal/replica"
	"github.com/dyluth/bento/pkg/bento"
)

// OutputFormat specifies how list commands render their output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table with truncated columns
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs one JSON object per line
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates an --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputFormatDefault:
		return OutputFormatDefault, nil
	case OutputFormatJSONL:
		return OutputFormatJSONL, nil
	default:
		return "", fmt.Errorf("invalid output format %q (must be 'default' or 'jsonl')", s)
	}
}

// FormatCatalog writes the bento list as a table. Divider rows become a
// heading naming the feed and its other members. Returns the number of bentos written.
func FormatCatalog(w io.Writer, rows []replica.CatalogEntry, instanceName string) int {
	count := 0
	for _, row := range rows {
		if !row.Divider {
			count++
		}
	}
	if count == 0 {
		fmt.Fprintf(w, "No bentos found for instance '%s'\n", instanceName)
		return 0
	}

	for i, row := range rows {
		if row.Divider {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "── %s%s\n", row.FeedID, formatMembers(row.Members))
			fmt.Fprintf(w, "%-10s %-30s %s\n", "ID", "NAME", "TODOS")
			continue
		}
		fmt.Fprintf(w, "%-10s %-30s %d\n", shortID(row.RootID), truncate(row.Name, 30), row.TodoCount)
	}

	fmt.Fprintf(w, "\n%d %s found\n", count, plural(count, "bento", "bentos"))
	return count
}

// FormatTodos writes the items of b in their replicated order.
func FormatTodos(w io.Writer, b *bento.Bento, now time.Time) {
	fmt.Fprintf(w, "%s (%d/%d done)\n\n", b.Name, b.DoneCount(), len(b.TodoItems))
	if len(b.TodoItems) == 0 {
		fmt.Fprintln(w, "No todos yet")
		return
	}

	fmt.Fprintf(w, "%-3s %-4s %-10s %-32s %-8s %s\n", "#", "DONE", "ID", "TITLE", "CHANGED", "NOTE")
	for i, item := range b.TodoItems {
		done := "[ ]"
		if item.Done {
			done = "[x]"
		}
		title := truncate(item.Title, 32)
		if item.HasImage {
			title = truncate(item.Title, 30) + " ▣"
		}
		fmt.Fprintf(w, "%-3d %-4s %-10s %-32s %-8s %s\n",
			i, done, shortID(item.UUID), title,
			formatAge(item.ModifiedAtMillis, now),
			firstLine(item.Description, 40))
	}
}

// FormatHistory writes feed entries of one bento, oldest first.
func FormatHistory(w io.Writer, rows []HistoryRow, now time.Time) int {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No state updates found")
		return 0
	}

	fmt.Fprintf(w, "%-10s %-5s %-8s %-6s %-8s %s\n", "ID", "SEQ", "AGE", "ITEMS", "IMAGE", "TEXT")
	for _, r := range rows {
		items := "-"
		if r.HasState {
			items = fmt.Sprintf("%d", r.ItemCount)
		}
		img := "-"
		if r.ImageFor != "" {
			img = shortID(r.ImageFor)
		}
		fmt.Fprintf(w, "%-10s %-5d %-8s %-6s %-8s %s\n",
			shortID(r.EntryID), r.SequenceKey, formatAge(r.TimestampMs, now), items, img, firstLine(r.Text, 40))
	}

	fmt.Fprintf(w, "\n%d %s found\n", len(rows), plural(len(rows), "entry", "entries"))
	return len(rows)
}

// FormatJSONL writes each item as a single-line JSON object.
func FormatJSONL[T any](w io.Writer, items []T) error {
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes v as indented JSON.
func FormatSingleJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// shortID truncates an ID to its first 8 characters for compact display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

// firstLine returns the first non-empty line of s, truncated to n. Empty input renders as "-".
func firstLine(s string, n int) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return truncate(trimmed, n)
		}
	}
	return "-"
}

func formatMembers(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return " (" + strings.Join(names, ", ") + ")"
}

// formatAge renders a Unix millisecond timestamp relative to now, like "2m ago".
func formatAge(ms int64, now time.Time) string {
	if ms == 0 {
		return "-"
	}

	diff := now.Sub(time.UnixMilli(ms))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
