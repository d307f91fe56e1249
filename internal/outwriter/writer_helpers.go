package outwriter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/covhub/covhub/internal/contract"
)

// writeWithFile handles the common pattern of opening a file, writing to it, and cleaning up.
// An empty outputFile writes to fallback.
func writeWithFile(outputFile string, fallback io.Writer, writer func(io.Writer) error, successMsg string) error {
	if outputFile == "" {
		return writer(fallback)
	}
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := writer(file); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "💾 %s to %s\n", successMsg, outputFile)
	return nil
}

// writeJSON is a generic JSON encoder that handles indentation consistently.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// fmtFloat formats a percentage with two decimals.
func fmtFloat(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
