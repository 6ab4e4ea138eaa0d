package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmelo/painel/internal/database"
)

// KeyParams is the full signature of one logical read. Every field
// participates in the key, so reads that differ in any parameter never share
// a cache slot and, through the coordinator, never share an in-flight
// request. Principal is mandatory: it is what keeps one user's data out of
// another's cache.
type KeyParams struct {
	Principal string
	Table     string
	Operation database.Operation
	Filters   []database.Filter
	OrderBy   []database.OrderBy
	Limit     int
	Single    bool
}

// GenerateKey produces the deterministic cache/coordination key for params.
// The key embeds the table and principal readably for debugging, followed by
// a SHA-256 digest of the canonical query signature.
func GenerateKey(params KeyParams) (string, error) {
	if params.Principal == "" {
		return "", database.NewError(database.KindValidation, "cache key requires a principal")
	}
	if params.Table == "" {
		return "", database.NewError(database.KindValidation, "cache key requires a table")
	}
	if params.Operation == "" {
		params.Operation = database.OperationSelect
	}

	canonical := struct {
		Principal string             `json:"principal"`
		Table     string             `json:"table"`
		Operation database.Operation `json:"operation"`
		Filters   [][3]any           `json:"filters,omitempty"`
		OrderBy   []database.OrderBy `json:"order_by,omitempty"`
		Limit     int                `json:"limit,omitempty"`
		Single    bool               `json:"single,omitempty"`
	}{
		Principal: strings.TrimSpace(params.Principal),
		Table:     strings.TrimSpace(params.Table),
		Operation: params.Operation,
		OrderBy:   params.OrderBy,
		Limit:     params.Limit,
		Single:    params.Single,
	}
	for _, f := range params.Filters {
		canonical.Filters = append(canonical.Filters, [3]any{f.Column, string(f.Operator), f.Value})
	}

	// encoding/json writes map keys in sorted order, so equal filter values
	// always serialize identically.
	raw, err := json.Marshal(canonical)
	if err != nil {
		return "", database.WrapError(database.KindValidation, "serializing cache key signature", err)
	}

	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%s:%s", canonical.Table, canonical.Principal, hex.EncodeToString(sum[:16])), nil
}
