package attestation

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	nitroverifier "github.com/anchorageoss/awsnitroverifier"
)

const maxPCRIndex = 31

// ParsePCRs parses a comma separated list of "index:hex" (or "index=hex") rules.
//
// Example: "0:f2479c80...,8=0x3a9b..."
func ParsePCRs(spec string) ([]nitroverifier.PCRRule, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}

	entries := map[uint]string{}
	var order []uint
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		sep := strings.IndexAny(item, ":=")
		if sep < 0 {
			return nil, fmt.Errorf("invalid PCR rule %q: expected index:hex", item)
		}
		index, err := parseIndex(item[:sep])
		if err != nil {
			return nil, err
		}
		if _, dup := entries[index]; dup {
			return nil, fmt.Errorf("PCR[%d] specified more than once", index)
		}
		entries[index] = item[sep+1:]
		order = append(order, index)
	}

	rules := make([]nitroverifier.PCRRule, 0, len(order))
	for _, index := range order {
		rule, err := newRule(index, entries[index])
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// PCRRulesFromMap converts configured index to hex values into rules ordered by index
func PCRRulesFromMap(values map[uint]string) ([]nitroverifier.PCRRule, error) {
	indexes := make([]uint, 0, len(values))
	for index := range values {
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	rules := make([]nitroverifier.PCRRule, 0, len(indexes))
	for _, index := range indexes {
		if index > maxPCRIndex {
			return nil, fmt.Errorf("PCR index %d out of range", index)
		}
		rule, err := newRule(index, values[index])
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseIndex(s string) (uint, error) {
	index, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil || index > maxPCRIndex {
		return 0, fmt.Errorf("invalid PCR index %q", s)
	}
	return uint(index), nil
}

func newRule(index uint, value string) (nitroverifier.PCRRule, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "0x")
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return nitroverifier.PCRRule{}, fmt.Errorf("invalid hex for PCR[%d]: %w", index, err)
	}
	if len(decoded) == 0 {
		return nitroverifier.PCRRule{}, fmt.Errorf("empty value for PCR[%d]", index)
	}
	return nitroverifier.PCRRule{Index: index, Value: decoded}, nil
}
