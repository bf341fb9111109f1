package library

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	maxManifestLine = 1024 * 1024 // 1MB

	// skippedTextLimit bounds the text kept for an over-long skipped line.
	skippedTextLimit = 120
)

// ImportStatement returns the manifest line recorded for a function.
func ImportStatement(name string) string {
	return "from " + name + " import " + name + "\n"
}

// SkippedLine is a manifest line that names no function.
type SkippedLine struct {
	Number int    `json:"number" yaml:"number"`
	Text   string `json:"text" yaml:"text"`
}

// ParseManifest returns the function names recorded in a manifest, in
// first-seen order without duplicates.
//
// The name is the second whitespace-separated token of a line, cut at its
// first '.'. Blank lines and '#' comments are ignored. Lines with fewer than
// two tokens, lines whose name would be empty, and lines longer than 1MB are
// returned as skipped.
//
// On a read error the names parsed so far are returned with the error.
func ParseManifest(r io.Reader) (names []string, skipped []SkippedLine, err error) {
	reader := bufio.NewReader(r)
	seen := make(map[string]bool)
	number := 0
	for {
		raw, tooLong, err := readManifestLine(reader)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return names, skipped, fmt.Errorf("read manifest: %w", err)
		}
		number++

		if tooLong {
			text := raw
			if len(text) > skippedTextLimit {
				text = text[:skippedTextLimit]
			}
			skipped = append(skipped, SkippedLine{Number: number, Text: string(text) + "..."})
			continue
		}

		line := strings.TrimSpace(string(raw))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			skipped = append(skipped, SkippedLine{Number: number, Text: line})
			continue
		}
		name, _, _ := strings.Cut(fields[1], ".")
		if name == "" {
			skipped = append(skipped, SkippedLine{Number: number, Text: line})
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, skipped, nil
}

// readManifestLine reads one line without its terminator. Past
// maxManifestLine the rest of the line is discarded and tooLong is set.
// io.EOF is returned only when no line is left.
func readManifestLine(r *bufio.Reader) (line []byte, tooLong bool, err error) {
	started := false
	for {
		frag, isPrefix, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && started {
				return line, tooLong, nil
			}
			return nil, false, err
		}
		started = true

		if !tooLong {
			if len(line)+len(frag) > maxManifestLine {
				tooLong = true
				line = append(line, frag[:min(len(frag), skippedTextLimit)]...)
			} else {
				line = append(line, frag...)
			}
		}
		if !isPrefix {
			return line, tooLong, nil
		}
	}
}
