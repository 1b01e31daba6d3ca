package gateway

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxMetadataValueLength is the gateway's limit for a single metadata value.
const MaxMetadataValueLength = 500

// Metadata keys attached to payment intents and invoices. The reconciler
// reads them back from webhook events.
const (
	MetaFeeID     = "fee_id"
	MetaRsvpID    = "rsvp_id"
	MetaProfileID = "profile_id"
	MetaPersonID  = "person_id"
	MetaPaymentID = "payment_id"
	MetaEventID   = "event_id"
	MetaRsvpIDs   = "rsvp_ids"
	MetaPersonIDs = "person_ids"
	MetaInvoiceID = "invoice_id"
	MetaRosterID  = "roster_id"

	// MetaLegacyRsvp is written by older clients and still honoured on read.
	MetaLegacyRsvp = "rsvp"
)

// Metadata is the string map carried on gateway objects.
type Metadata map[string]string

func (m Metadata) SetUint(key string, v uint) {
	m[key] = strconv.FormatUint(uint64(v), 10)
}

// Uint reads key as a positive integer id.
func (m Metadata) Uint(key string) (uint, bool) {
	raw := strings.TrimSpace(m[key])
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// SetIDs stores ids as a comma-separated list, rejecting values the gateway
// would truncate.
func (m Metadata) SetIDs(key string, ids []uint) error {
	encoded := EncodeIDs(ids)
	if len(encoded) > MaxMetadataValueLength {
		return fmt.Errorf("metadata %s exceeds %d characters", key, MaxMetadataValueLength)
	}
	m[key] = encoded
	return nil
}

// IDs reads a list written by SetIDs.
func (m Metadata) IDs(key string) ([]uint, error) {
	return DecodeIDs(m[key])
}

// Validate checks every value fits the gateway limit.
func (m Metadata) Validate() error {
	for k, v := range m {
		if len(v) > MaxMetadataValueLength {
			return fmt.Errorf("metadata %s exceeds %d characters", k, MaxMetadataValueLength)
		}
	}
	return nil
}

// EncodeIDs renders ids sorted ascending as "3,7,12".
func EncodeIDs(ids []uint) string {
	sorted := SortedIDs(ids)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

// DecodeIDs parses a comma-separated id list. Blank entries are skipped.
func DecodeIDs(raw string) ([]uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	fields := strings.Split(raw, ",")
	out := make([]uint, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q in list: %w", f, err)
		}
		out = append(out, uint(n))
	}
	return out, nil
}

// SortedIDs returns a sorted, de-duplicated copy of ids.
func SortedIDs(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
