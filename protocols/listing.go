package protocols

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Record is one raw structured listing fact set, as reported by a server
// speaking a machine-parsable listing (MLSD facts or equivalent).
type Record struct {
	Name   string
	Type   string // "dir" marks a directory, anything else is a file
	Size   string // decimal byte count, may be empty
	Modify string // server-native timestamp, may be empty
}

// NormalizeStructured converts structured listing records into the
// canonical entry model: "." dropped, directories before files, both
// groups ascending case-insensitively, one synthetic parent entry first.
func NormalizeStructured(records []Record) []Entry {
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		if r.Name == "." {
			continue
		}
		kind := KindFile
		if r.Type == "dir" {
			kind = KindDir
		}
		entries = append(entries, Entry{
			Name:     r.Name,
			Kind:     kind,
			Size:     parseSize(r.Size),
			Modified: r.Modify,
		})
	}
	return finishListing(entries)
}

// NormalizeLegacy converts free-text listing lines (one per entry) into
// the canonical entry model. Lines are split into at most nine
// whitespace-delimited tokens; the final token is the name and may itself
// contain spaces. Lines too short for the long format degrade to a
// best-effort file entry instead of aborting the listing.
func NormalizeLegacy(lines []string) []Entry {
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		e := parseLegacyLine(line)
		if e.Name == "." {
			continue
		}
		entries = append(entries, e)
	}
	return finishListing(entries)
}

func parseLegacyLine(line string) Entry {
	parts := splitTokens(line, 9)
	if len(parts) < 9 {
		name := line
		if len(parts) > 0 {
			name = parts[len(parts)-1]
		}
		return Entry{Name: name, Kind: KindFile}
	}
	mode, size := parts[0], parts[4]
	month, day, timeOrYear := parts[5], parts[6], parts[7]
	kind := KindFile
	if strings.HasPrefix(mode, "d") {
		kind = KindDir
	}
	return Entry{
		Name:     parts[8],
		Kind:     kind,
		Size:     parseSize(size),
		Modified: day + " " + month + " " + timeOrYear,
	}
}

// splitTokens splits s on runs of whitespace into at most max tokens; the
// last token keeps any embedded whitespace.
func splitTokens(s string, max int) []string {
	var tokens []string
	rest := strings.TrimSpace(s)
	for rest != "" && len(tokens) < max-1 {
		i := strings.IndexFunc(rest, unicode.IsSpace)
		if i < 0 {
			break
		}
		tokens = append(tokens, rest[:i])
		rest = strings.TrimLeftFunc(rest[i:], unicode.IsSpace)
	}
	if rest != "" {
		tokens = append(tokens, rest)
	}
	return tokens
}

func parseSize(s string) uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// listWithFallback applies the two-tier listing policy. The structured
// tier wins when it yields records. It falls through to the legacy
// free-text tier both when the server rejected the structured attempt and
// when the attempt came back empty: the library behind the structured tier
// silently drops lines its parsers cannot read, so an empty structured
// result may hide a directory full of oddly-formatted entries. A directory
// both tiers agree is empty stays empty.
func listWithFallback(structured func() ([]Record, error), legacy func() ([]string, error)) ([]Entry, error) {
	records, serr := structured()
	if serr == nil && len(records) > 0 {
		return NormalizeStructured(records), nil
	}

	lines, lerr := legacy()
	if lerr != nil {
		if serr != nil {
			return nil, serr
		}
		// Structured tier succeeded and was empty; the legacy tier's
		// failure changes nothing.
		return NormalizeStructured(nil), nil
	}
	if serr == nil && len(lines) == 0 {
		return NormalizeStructured(nil), nil
	}
	return NormalizeLegacy(lines), nil
}

// finishListing applies the canonical ordering (directories before files,
// each group case-insensitively ascending) and prepends the synthetic
// parent entry. The parent is added even at the server root; navigating up
// from there surfaces the server's own error.
func finishListing(entries []Entry) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.Kind == KindDir) != (b.Kind == KindDir) {
			return a.Kind == KindDir
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	out := make([]Entry, 0, len(entries)+1)
	out = append(out, Entry{Name: "..", Kind: KindParent})
	return append(out, entries...)
}
