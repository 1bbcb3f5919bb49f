package notify

import "github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"

// Target is either one device token or a collection of token records.
type Target struct {
	token   string
	records []dispatch.TokenRecord
	multi   bool
}

// ToToken addresses a single device; it takes the single-send path.
func ToToken(token string) Target {
	return Target{token: token}
}

// ToRecords addresses every record in the collection; it takes the
// multicast path even when the collection holds one record.
func ToRecords(records []dispatch.TokenRecord) Target {
	return Target{records: records, multi: true}
}

// ToTokens addresses a collection of raw token strings.
func ToTokens(tokens []string) Target {
	records := make([]dispatch.TokenRecord, 0, len(tokens))
	for _, t := range tokens {
		records = append(records, dispatch.TokenRecord{FCMToken: t})
	}
	return ToRecords(records)
}

// IsMulticast reports which path the target takes.
func (t Target) IsMulticast() bool {
	return t.multi
}

// tokens plucks the non-empty token values, dropping duplicates.
func (t Target) tokens() []string {
	seen := make(map[string]struct{}, len(t.records))
	out := make([]string, 0, len(t.records))
	for _, r := range t.records {
		if r.FCMToken == "" {
			continue
		}
		if _, dup := seen[r.FCMToken]; dup {
			continue
		}
		seen[r.FCMToken] = struct{}{}
		out = append(out, r.FCMToken)
	}
	return out
}
