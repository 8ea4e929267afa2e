package orderstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mesaqr/api/internal/enum"
	"github.com/shopspring/decimal"
)

// SchemaVersion is the version written into every persisted record.
// Version 1 is the unversioned legacy layout.
const SchemaVersion = 2

// Errors returned while decoding persisted or broadcast state.
var (
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	ErrMalformedSnapshot  = errors.New("malformed snapshot")
)

type persistedRecord struct {
	Version int      `json:"version"`
	Mesas   Snapshot `json:"mesas"`
}

type rawRecord struct {
	Version int                        `json:"version"`
	Mesas   map[string]json.RawMessage `json:"mesas"`
}

// rawTable accepts every field spelling seen in older records.
type rawTable struct {
	Items            json.RawMessage `json:"items"`
	Llamada          *bool           `json:"llamada"`
	CuentaSolicitada *bool           `json:"cuentaSolicitada"`
	CustomProducts   json.RawMessage `json:"customProducts"`
}

type rawLine struct {
	ProductID   string          `json:"productId"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Nombre      string          `json:"nombre"`
	Price       decimal.Decimal `json:"price"`
	Precio      decimal.Decimal `json:"precio"`
	Timestamp   int64           `json:"timestamp"`
	Delivered   *bool           `json:"delivered"`
	Entregado   *bool           `json:"entregado"`
	Status      string          `json:"status"`
	Estado      string          `json:"estado"`
	Destination string          `json:"destination"`
	Custom      bool            `json:"custom"`
	Personal    bool            `json:"personalizado"`
}

// legacyStatuses maps status spellings from older records.
var legacyStatuses = map[string]string{
	"pendiente":      enum.ItemStatusPending,
	"confirmado":     enum.ItemStatusConfirmed,
	"preparando":     enum.ItemStatusInPreparation,
	"en_preparacion": enum.ItemStatusInPreparation,
	"preparing":      enum.ItemStatusInPreparation,
	"listo":          enum.ItemStatusReady,
}

// EncodeSnapshot serializes s in the current persisted layout.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	if s == nil {
		s = Snapshot{}
	}
	return json.Marshal(persistedRecord{Version: SchemaVersion, Mesas: s})
}

// DecodeSnapshot parses a persisted record of any known version, migrating
// it to the current shape.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Snapshot{}, nil
	}
	var rec rawRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	if rec.Version > SchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, rec.Version)
	}
	return migrateTables(rec.Mesas)
}

// migrateTables normalizes every table. A table that cannot be read at all
// fails the whole snapshot.
func migrateTables(raw map[string]json.RawMessage) (Snapshot, error) {
	out := make(Snapshot, len(raw))
	for id, data := range raw {
		t, err := migrateTable(data)
		if err != nil {
			return nil, fmt.Errorf("%w: table %s: %w", ErrMalformedSnapshot, id, err)
		}
		out[id] = t
	}
	return out, nil
}

func migrateTable(data json.RawMessage) (TableState, error) {
	t := NewTableState()
	if isNull(data) {
		return t, nil
	}
	var rt rawTable
	if err := json.Unmarshal(data, &rt); err != nil {
		return t, err
	}
	if rt.Llamada != nil {
		t.StaffCalled = *rt.Llamada
	}
	if rt.CuentaSolicitada != nil {
		t.BillRequested = *rt.CuentaSolicitada
	}

	// A non-array items value is treated as no lines.
	var lines []rawLine
	if isArray(rt.Items) {
		if err := json.Unmarshal(rt.Items, &lines); err != nil {
			return t, err
		}
	}
	var prev int64
	for _, rl := range lines {
		l := migrateLine(rl)
		if l.Timestamp <= prev {
			l.Timestamp = prev + 1
		}
		prev = l.Timestamp
		t.Items = append(t.Items, l)
	}

	if isArray(rt.CustomProducts) {
		var cps []CustomProduct
		if err := json.Unmarshal(rt.CustomProducts, &cps); err != nil {
			return t, err
		}
		t.CustomProducts = append(t.CustomProducts, cps...)
	}
	return t, nil
}

func migrateLine(rl rawLine) OrderLine {
	l := OrderLine{
		ProductID:   firstNonEmpty(rl.ProductID, rl.ID),
		Name:        firstNonEmpty(rl.Name, rl.Nombre),
		Price:       rl.Price,
		Timestamp:   rl.Timestamp,
		Destination: rl.Destination,
		Custom:      rl.Custom || rl.Personal,
	}
	if l.Price.IsZero() && !rl.Precio.IsZero() {
		l.Price = rl.Precio
	}
	switch {
	case rl.Delivered != nil:
		l.Delivered = *rl.Delivered
	case rl.Entregado != nil:
		l.Delivered = *rl.Entregado
	}
	l.Status = normalizeStatus(firstNonEmpty(rl.Status, rl.Estado))
	if l.Destination != enum.DestinationBar {
		l.Destination = enum.DestinationKitchen
	}
	return l
}

func normalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if enum.IsValidItemStatus(s) {
		return s
	}
	if mapped, ok := legacyStatuses[s]; ok {
		return mapped
	}
	return enum.ItemStatusPending
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func isNull(data json.RawMessage) bool {
	d := bytes.TrimSpace(data)
	return len(d) == 0 || bytes.Equal(d, []byte("null"))
}

func isArray(data json.RawMessage) bool {
	d := bytes.TrimSpace(data)
	return len(d) > 0 && d[0] == '['
}
