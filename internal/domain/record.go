package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Domain identifies which quality stream a record belongs to
type Domain string

const (
	DomainInternal Domain = "Internal"
	DomainExternal Domain = "External"
	DomainProcess  Domain = "Process"
)

// Domains lists every domain in concatenation order
var Domains = []Domain{DomainInternal, DomainExternal, DomainProcess}

// ParseDomain converts a string to Domain. The second result is false for
// unknown or empty input.
func ParseDomain(s string) (Domain, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "internal":
		return DomainInternal, true
	case "external":
		return DomainExternal, true
	case "process":
		return DomainProcess, true
	default:
		return "", false
	}
}

// Order returns the position of the domain in concatenation order
func (d Domain) Order() int {
	switch d {
	case DomainInternal:
		return 0
	case DomainExternal:
		return 1
	case DomainProcess:
		return 2
	default:
		return 3
	}
}

// Allows reports whether status is valid for records of this domain
func (d Domain) Allows(s Status) bool {
	switch d {
	case DomainInternal:
		return s == StatusPass || s == StatusFail
	case DomainExternal:
		return s == StatusOpen || s == StatusClosed
	case DomainProcess:
		return s == StatusPass || s == StatusFail || s == StatusOpen || s == StatusClosed
	default:
		return false
	}
}

// Status is the outcome recorded for a quality event
type Status string

const (
	StatusPass   Status = "Pass"
	StatusFail   Status = "Fail"
	StatusOpen   Status = "Open"
	StatusClosed Status = "Closed"
)

// ParseStatus converts a string to Status, ignoring case
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pass":
		return StatusPass, true
	case "fail":
		return StatusFail, true
	case "open":
		return StatusOpen, true
	case "closed":
		return StatusClosed, true
	default:
		return "", false
	}
}

// IsPass is true for statuses that count towards right-first-time
func (s Status) IsPass() bool {
	return s == StatusPass || s == StatusClosed
}

// IsDefect is true for statuses that flag a lot as having errors
func (s Status) IsDefect() bool {
	return s == StatusFail || s == StatusOpen
}

// RecordID accepts both string and numeric JSON identifiers
type RecordID string

func (id *RecordID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = RecordID(n.String())
	return nil
}

// RawRecord is a record as it appears in a source payload, before validation
type RawRecord struct {
	ID            RecordID `json:"id"`
	Date          string   `json:"date"`
	Lot           string   `json:"lot"`
	Domain        string   `json:"domain,omitempty"`
	Department    string   `json:"department,omitempty"`
	ErrorType     string   `json:"errorType,omitempty"`
	IssueType     string   `json:"issueType,omitempty"`
	Stage         string   `json:"stage,omitempty"`
	Form          string   `json:"form,omitempty"`
	Status        string   `json:"status"`
	Sentiment     *float64 `json:"sentiment,omitempty"`
	DurationHours *float64 `json:"durationHours,omitempty"`
}

// Record is one validated quality-control event. Values are never mutated
// after NewRecord returns.
type Record struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	Lot           string    `json:"lot"`
	Domain        Domain    `json:"domain"`
	Department    string    `json:"department,omitempty"`
	ErrorType     string    `json:"errorType,omitempty"`
	IssueType     string    `json:"issueType,omitempty"`
	Stage         string    `json:"stage,omitempty"`
	Form          string    `json:"form,omitempty"`
	Status        Status    `json:"status"`
	Sentiment     *float64  `json:"sentiment,omitempty"`
	DurationHours *float64  `json:"durationHours,omitempty"`
}

// NewRecord validates raw and returns it as a Record of domain d
func NewRecord(raw RawRecord, d Domain) (Record, error) {
	id := string(raw.ID)
	if d.Order() > 2 {
		return Record{}, &InvalidRecordError{ID: id, Field: "domain", Reason: "unknown domain " + string(d)}
	}

	lot := strings.TrimSpace(raw.Lot)
	if lot == "" {
		return Record{}, &InvalidRecordError{ID: id, Field: "lot", Reason: "missing lot"}
	}

	date, err := ParseDate(raw.Date)
	if err != nil {
		return Record{}, &InvalidRecordError{ID: id, Field: "date", Reason: "unparseable date " + quote(raw.Date), Err: err}
	}

	status, ok := ParseStatus(raw.Status)
	if !ok || !d.Allows(status) {
		return Record{}, &InvalidRecordError{ID: id, Field: "status", Reason: "status " + quote(raw.Status) + " not allowed for " + string(d)}
	}

	if raw.Sentiment != nil {
		s := *raw.Sentiment
		if math.IsNaN(s) || s < -1 || s > 1 {
			return Record{}, &InvalidRecordError{ID: id, Field: "sentiment", Reason: "sentiment outside [-1, 1]"}
		}
	}

	if raw.DurationHours != nil {
		h := *raw.DurationHours
		if math.IsNaN(h) || math.IsInf(h, 0) || h < 0 {
			return Record{}, &InvalidRecordError{ID: id, Field: "durationHours", Reason: "duration must be a non-negative number"}
		}
	}

	return Record{
		ID:            id,
		Date:          date,
		Lot:           lot,
		Domain:        d,
		Department:    strings.TrimSpace(raw.Department),
		ErrorType:     strings.TrimSpace(raw.ErrorType),
		IssueType:     strings.TrimSpace(raw.IssueType),
		Stage:         strings.TrimSpace(raw.Stage),
		Form:          strings.TrimSpace(raw.Form),
		Status:        status,
		Sentiment:     copyFloat(raw.Sentiment),
		DurationHours: copyFloat(raw.DurationHours),
	}, nil
}

// ParseDate parses the date formats found in exported spreadsheets, in UTC
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyDate
	}
	return dateparse.ParseIn(s, time.UTC)
}

// Month returns the YYYY-MM bucket of the record date
func (r Record) Month() string {
	return r.Date.Format(MonthLayout)
}

// MonthLayout is the layout of month bucket keys
const MonthLayout = "2006-01"

// DateLayout is the layout of day-precision dates in documents
const DateLayout = "2006-01-02"

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func quote(s string) string {
	return `"` + s + `"`
}
