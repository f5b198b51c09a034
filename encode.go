package folio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Kind discriminates the records of a JSONL import file.
type Kind string

const (
	KindTransaction  Kind = "transaction"
	KindAsset        Kind = "asset"
	KindSnapshot     Kind = "snapshot"
	KindPrice        Kind = "price"
	KindLedgerAmount Kind = "ledger"
	KindFXQuote      Kind = "fx"
)

// Record is one line of a JSONL import file. The set of implementations is
// closed: Transaction, Asset, PersistedHoldingRecord, PricePoint,
// LedgerAmount and FXQuote.
type Record interface {
	Kind() Kind
}

// Decode reads records from a stream of JSONL data. Each line carries a
// "kind" field selecting the record type. Decoding stops at the first
// malformed line.
func Decode(r io.Reader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			lineBytes := scanner.Bytes()
			if len(lineBytes) == 0 {
				continue // Skip empty lines
			}
			rec, err := decodeLine(lineBytes)
			if err != nil {
				yield(nil, fmt.Errorf("line %d: %w", line, err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func decodeLine(b []byte) (Record, error) {
	var identifier struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(b, &identifier); err != nil {
		return nil, fmt.Errorf("could not identify record kind in %q: %w", string(b), err)
	}
	switch identifier.Kind {
	case KindTransaction:
		return unmarshal[Transaction](b)
	case KindAsset:
		return unmarshal[Asset](b)
	case KindSnapshot:
		return unmarshal[PersistedHoldingRecord](b)
	case KindPrice:
		return unmarshal[PricePoint](b)
	case KindLedgerAmount:
		return unmarshal[LedgerAmount](b)
	case KindFXQuote:
		return unmarshal[FXQuote](b)
	default:
		return nil, fmt.Errorf("unsupported record kind %q", identifier.Kind)
	}
}

func unmarshal[R Record](b []byte) (Record, error) {
	var rec R
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Encode writes a record as a single JSONL line, with its kind first.
func Encode(w io.Writer, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	var line []byte
	line = append(line, `{"kind":`...)
	kind, _ := json.Marshal(rec.Kind())
	line = append(line, kind...)
	if len(body) > 2 {
		line = append(line, ',')
		line = append(line, body[1:]...)
	} else {
		line = append(line, '}')
	}
	line = append(line, '\n')
	_, err = w.Write(line)
	return err
}
