package analysis

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// WriteReport writes r to w as YAML.
func WriteReport(w io.Writer, r *Results) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return enc.Close()
}
