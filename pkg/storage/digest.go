package storage

import (
	"fmt"
	"strings"
)

// BusinessPair is one customer+order pair feeding the prompt-context digest.
type BusinessPair struct {
	CustomerName string
	Industry     string
	Title        string
	Status       string
}

// RenderBusinessDigest formats pairs (newest first) as a bulleted digest for
// prompt context. An empty input renders to the empty string so the
// assembler can omit the block entirely.
func RenderBusinessDigest(pairs []BusinessPair) string {
	if len(pairs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Recent business activity:")
	for _, p := range pairs {
		fmt.Fprintf(&b, "\n- %s (%s): %s [%s]", p.CustomerName, p.Industry, p.Title, p.Status)
	}
	return b.String()
}
