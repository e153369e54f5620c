package source

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"

	"github.com/vburojevic/qcdash/internal/domain"
)

// PayloadKind tells the orchestrator whether a payload needs transforming
type PayloadKind int

const (
	PayloadAggregated PayloadKind = iota
	PayloadRecords
)

func (k PayloadKind) String() string {
	if k == PayloadAggregated {
		return "aggregated"
	}
	return "records"
}

// Payload is a validated source body
type Payload struct {
	Kind     PayloadKind
	Document *domain.AnalyticsDocument
	Batches  []domain.SourceBatch
}

// Decode validates body against the shape d declares. Aggregated
// descriptors also accept a records payload.
func Decode(d Descriptor, body []byte) (*Payload, error) {
	if len(body) == 0 {
		return nil, &domain.MalformedPayloadError{Source: d.Name, Reason: "empty body"}
	}
	if !gjson.ValidBytes(body) {
		return nil, &domain.MalformedPayloadError{Source: d.Name, Reason: "invalid JSON"}
	}

	root := gjson.ParseBytes(body)
	records := root.Get("records")

	if d.Aggregated {
		if root.Get("overview").IsObject() {
			var doc domain.AnalyticsDocument
			if err := json.Unmarshal(body, &doc); err != nil {
				return nil, &domain.MalformedPayloadError{Source: d.Name, Reason: "decode document", Err: err}
			}
			return &Payload{Kind: PayloadAggregated, Document: &doc}, nil
		}
		if !records.IsArray() {
			return nil, &domain.MalformedPayloadError{Source: d.Name, Reason: "expected aggregated document with overview"}
		}
	}

	var elems gjson.Result
	switch {
	case records.IsArray():
		elems = records
	case root.IsArray():
		elems = root
	default:
		return nil, &domain.MalformedPayloadError{Source: d.Name, Reason: "expected records array"}
	}

	batch := domain.SourceBatch{Source: d.Name, Domain: d.Domain, Records: []domain.RawRecord{}}
	elems.ForEach(func(_, elem gjson.Result) bool {
		var rec domain.RawRecord
		if err := json.Unmarshal([]byte(elem.Raw), &rec); err != nil {
			batch.Rejected = append(batch.Rejected, rejectedRecord(elem, err))
			return true
		}
		batch.Records = append(batch.Records, rec)
		return true
	})

	return &Payload{Kind: PayloadRecords, Batches: []domain.SourceBatch{batch}}, nil
}

// rejectedRecord describes an array element that does not decode as a
// record. Only that element is lost.
func rejectedRecord(elem gjson.Result, err error) *domain.InvalidRecordError {
	invalid := &domain.InvalidRecordError{Reason: "decode: " + err.Error(), Err: err}
	if elem.IsObject() {
		invalid.ID = elem.Get("id").String()
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		invalid.Field = typeErr.Field
	}
	return invalid
}
