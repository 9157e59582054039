package config

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// ParseGitConfigZ parses the output of `git config --list -z`: NUL-terminated
// records of the form "key\nvalue", where the value (and its preceding
// newline) is absent for valueless boolean entries. Every value of a repeated
// key is kept, in order, so callers see the same multi-valued view git does.
func ParseGitConfigZ(r io.Reader) (map[string][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config stream: %w", err)
	}

	values := make(map[string][]string)
	for _, record := range bytes.Split(data, []byte{0}) {
		if len(record) == 0 {
			continue
		}
		key, value, found := strings.Cut(string(record), "\n")
		if key == "" {
			continue
		}
		if !found {
			value = "" // valueless entry, git boolean shorthand
		}
		values[key] = append(values[key], value)
	}
	return values, nil
}

// ParseGitConfigLines parses newline-separated "key=value" records, the
// format of `git config --list` without -z. Values containing newlines are
// not representable here; prefer the -z format when feeding real repos.
func ParseGitConfigLines(r io.Reader) (map[string][]string, error) {
	values := make(map[string][]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if key == "" {
			continue
		}
		if !found {
			value = ""
		}
		values[key] = append(values[key], value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading config stream: %w", err)
	}
	return values, nil
}
