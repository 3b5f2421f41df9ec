package commands

import (
	"io"

	"github.com/dyluth/bento/internal/printer"
)

// out is where commands write tables and JSON.
func out() io.Writer {
	return printer.Default.Out
}
