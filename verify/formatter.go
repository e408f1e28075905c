package verify

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/anchorageoss/tlsn-verifier/transcript"
)

// Formatter formats verification results for display
type Formatter struct{}

// NewFormatter creates a new formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// FormatSummary renders a human readable report of a verification
func (f *Formatter) FormatSummary(r *Result) string {
	var sb strings.Builder
	out := r.Output

	if !out.Valid {
		sb.WriteString("✗ Presentation rejected\n")
		sb.WriteString(fmt.Sprintf("  Error: %s\n", out.Error))
		sb.WriteString(fmt.Sprintf("  Proof hash: %s\n", out.ProofHash))
		return sb.String()
	}

	sb.WriteString("✓ Presentation verified\n")
	sb.WriteString(fmt.Sprintf("  Server: %s\n", out.ServerName))
	sb.WriteString(fmt.Sprintf("  Session time: %s\n", f.FormatTime(out.Time)))
	sb.WriteString(fmt.Sprintf("  Notary key: %s\n", shorten(out.NotaryPubKey)))
	sb.WriteString(fmt.Sprintf("  Proof hash: %s\n", out.ProofHash))

	if r.Attestation != nil {
		sb.WriteString(fmt.Sprintf("  Attested by enclave: %s\n", r.Attestation.ModuleID))
		sb.WriteString(f.FormatPCRValues(r.Attestation.PCRs, "PCR Values", "  "))
	}

	if r.Transcript != nil {
		sb.WriteString(f.FormatTranscript("Sent", r.Transcript.Sent))
		sb.WriteString(f.FormatTranscript("Received", r.Transcript.Received))
	}
	return sb.String()
}

// FormatTime renders a session time, or "unset" for zero
func (f *Formatter) FormatTime(ts uint64) string {
	if ts == 0 {
		return "unset"
	}
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}

// FormatTranscript renders one direction segment by segment. Gaps are reported
// on their own lines and never as placeholder bytes.
func (f *Formatter) FormatTranscript(title string, p *transcript.Partial) string {
	if p == nil || p.Len() == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n%s (%d of %d bytes disclosed):\n", title, p.DisclosedCount(), p.Len()))

	prev := 0
	for _, seg := range p.Segments() {
		if seg.Start > prev {
			sb.WriteString(fmt.Sprintf("  ~ %d bytes redacted [%d, %d)\n", seg.Start-prev, prev, seg.Start))
		}
		sb.WriteString(fmt.Sprintf("  [%d, %d)\n", seg.Start, seg.End))
		for _, line := range strings.Split(string(seg.Data), "\n") {
			sb.WriteString("  | ")
			sb.WriteString(strings.TrimRight(line, "\r"))
			sb.WriteString("\n")
		}
		prev = seg.End
	}
	if prev < p.Len() {
		sb.WriteString(fmt.Sprintf("  ~ %d bytes redacted [%d, %d)\n", p.Len()-prev, prev, p.Len()))
	}
	return sb.String()
}

// FormatPCRValues formats PCR values, collapsing runs of all-zero registers
func (f *Formatter) FormatPCRValues(pcrs map[uint][]byte, title string, indent string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n%s%s:\n", indent, title))

	indexes := make([]uint, 0, len(pcrs))
	for idx, v := range pcrs {
		if len(v) > 0 {
			indexes = append(indexes, idx)
		}
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	for i := 0; i < len(indexes); i++ {
		idx := indexes[i]
		value := pcrs[idx]
		if !isAllZeros(value) {
			sb.WriteString(fmt.Sprintf("%s    PCR[%d]: %s\n", indent, idx, hex.EncodeToString(value)))
			continue
		}

		end := idx
		for i+1 < len(indexes) && indexes[i+1] == end+1 && isAllZeros(pcrs[indexes[i+1]]) {
			i++
			end = indexes[i]
		}
		if end == idx {
			sb.WriteString(fmt.Sprintf("%s    PCR[%d]: (all zeros)\n", indent, idx))
		} else {
			sb.WriteString(fmt.Sprintf("%s    PCR[%d-%d]: (all zeros)\n", indent, idx, end))
		}
	}
	return sb.String()
}

// FormatOutput converts an output to a generic map for JSON display
func (f *Formatter) FormatOutput(out *Output) map[string]interface{} {
	output := map[string]interface{}{
		"valid":           out.Valid,
		"server_name":     out.ServerName,
		"time":            out.Time,
		"data":            out.Data,
		"proof_hash":      out.ProofHash,
		"notary_pubkey":   out.NotaryPubKey,
		"redacted_ranges": out.RedactedRanges,
	}
	if len(out.DisclosedRanges) > 0 {
		output["disclosed_ranges"] = out.DisclosedRanges
	}
	if out.Error != "" {
		output["error"] = out.Error
	}
	return output
}

func isAllZeros(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func shorten(s string) string {
	if len(s) > 24 {
		return s[:16] + "..." + s[len(s)-8:]
	}
	return s
}
