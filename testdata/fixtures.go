// Package testdata provides embedded test fixtures for use across all test packages.
package testdata

import _ "embed"

// ScenarioJSON is a minimal presentation disclosing "HI" from api.example.com.
// Its signature and root only verify under a stub provider.
//
//go:embed scenario.json
var ScenarioJSON []byte

// MissingProofJSON has a session header and signature but no transcript proof
//
//go:embed missing_proof.json
var MissingProofJSON []byte

// EmptyRangesJSON discloses nothing
//
//go:embed empty_ranges.json
var EmptyRangesJSON []byte

// Malformed is not a presentation in any supported encoding
//
//go:embed malformed.txt
var Malformed []byte
