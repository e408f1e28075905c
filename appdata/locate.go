package appdata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	gojson "github.com/coreos/go-json"
	jp "github.com/reclaimprotocol/jsonpathplus-go"
)

var (
	// ErrNotJSON is returned when the data has no JSON body to query
	ErrNotJSON = errors.New("application data has no JSON body")
	// ErrNoMatch is returned when a JSONPath selects nothing
	ErrNoMatch = errors.New("jsonpath matched nothing")
)

// Match is one JSONPath result located in the transcript
type Match struct {
	Path  string `json:"path"`
	Raw   string `json:"raw"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Locate evaluates a JSONPath against the JSON body and reports where each
// matched value sits in the transcript. Start and End are transcript offsets
// when the body maps directly onto the transcript, and body offsets otherwise.
func Locate(d *Data, expr string) ([]Match, error) {
	if d == nil || d.Kind != KindJSON {
		return nil, ErrNotJSON
	}

	results, err := jp.Query(expr, string(d.Body))
	if err != nil {
		return nil, fmt.Errorf("jsonpath query failed: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, expr)
	}

	var root gojson.Node
	if err := gojson.Unmarshal(d.Body, &root); err != nil {
		return nil, fmt.Errorf("failed to parse JSON for offsets: %w", err)
	}

	base := d.BodyOffset
	if base < 0 {
		base = 0
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		n, err := findNode(&root, pathSegments(r.Path))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %q: %w", r.Path, err)
		}
		// Node.End is inclusive
		start, end := n.Start, n.End+1
		if start < 0 || end > len(d.Body) || start > end {
			return nil, fmt.Errorf("invalid range for path %q: [%d,%d)", r.Path, start, end)
		}
		matches = append(matches, Match{
			Path:  r.Path,
			Raw:   string(d.Body[start:end]),
			Start: base + start,
			End:   base + end,
		})
	}
	return matches, nil
}

// pathSegments splits a normalized path like $.a[1]['b'] into ["a", "1", "b"]
func pathSegments(path string) []string {
	p := strings.TrimPrefix(path, "$")
	p = strings.TrimPrefix(p, ".")
	if p == "" {
		return nil
	}

	var segments []string
	var cur strings.Builder
	inBracket := false
	for _, r := range p {
		switch {
		case r == '.' && !inBracket:
			if cur.Len() > 0 {
				segments = append(segments, cur.String())
				cur.Reset()
			}
			continue
		case r == '[':
			if cur.Len() > 0 {
				segments = append(segments, cur.String())
				cur.Reset()
			}
			inBracket = true
			continue
		case r == ']' && inBracket:
			segments = append(segments, strings.Trim(cur.String(), `'"`))
			cur.Reset()
			inBracket = false
			continue
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		segments = append(segments, cur.String())
	}
	return segments
}

func findNode(node *gojson.Node, segments []string) (*gojson.Node, error) {
	cur := node
	for i, seg := range segments {
		switch v := cur.Value.(type) {
		case map[string]gojson.Node:
			next, ok := v[seg]
			if !ok {
				return nil, fmt.Errorf("object key %q not found at segment %d", seg, i)
			}
			cur = &next
		case []gojson.Node:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, fmt.Errorf("invalid array index %q at segment %d", seg, i)
			}
			if idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("array index %d out of bounds at segment %d", idx, i)
			}
			cur = &v[idx]
		default:
			return nil, fmt.Errorf("cannot traverse into %T at segment %d", v, i)
		}
	}
	return cur, nil
}
