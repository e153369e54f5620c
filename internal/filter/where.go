package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vburojevic/qcdash/internal/domain"
)

// WhereClause represents a parsed --where condition
type WhereClause struct {
	Field    string
	Operator string
	Value    string
	regex    *regexp.Regexp // Compiled regex for ~ and !~ operators
	number   float64
	date     time.Time
}

var textFields = map[string]bool{
	"id": true, "lot": true, "domain": true, "department": true, "errortype": true,
	"issuetype": true, "stage": true, "form": true, "status": true,
}

var numericFields = map[string]bool{"sentiment": true, "durationhours": true}

// ParseWhereClause parses a where clause like "department=Production" or
// "durationHours>=2". Supported operators: =, !=, ~, !~, >=, <=, ^, $
func ParseWhereClause(clause string) (*WhereClause, error) {
	// Longest operators first to avoid partial matches
	operators := []string{"!~", ">=", "<=", "!=", "~", "=", "^", "$"}

	for _, op := range operators {
		idx := strings.Index(clause, op)
		if idx <= 0 {
			continue
		}
		field := strings.TrimSpace(clause[:idx])
		value := strings.TrimSpace(clause[idx+len(op):])
		if field == "" || value == "" {
			return nil, fmt.Errorf("invalid where clause: %s", clause)
		}

		if (strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"")) ||
			(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
			unq, err := strconv.Unquote(value)
			if err != nil {
				return nil, fmt.Errorf("invalid quoted value in where clause '%s': %w", clause, err)
			}
			value = unq
		}

		wc := &WhereClause{Field: field, Operator: op, Value: value}
		key := strings.ToLower(field)

		switch {
		case numericFields[key]:
			if op == "~" || op == "!~" || op == "^" || op == "$" {
				return nil, fmt.Errorf("operator %s not supported for numeric field %s", op, field)
			}
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number in where clause '%s': %w", clause, err)
			}
			wc.number = n
		case key == "date":
			if op == "~" || op == "!~" || op == "^" || op == "$" {
				return nil, fmt.Errorf("operator %s not supported for date", op)
			}
			d, err := domain.ParseDate(value)
			if err != nil {
				return nil, fmt.Errorf("invalid date in where clause '%s': %w", clause, err)
			}
			wc.date = d
		case textFields[key]:
			if op == ">=" || op == "<=" {
				return nil, fmt.Errorf("operator %s not supported for text field %s", op, field)
			}
		default:
			return nil, fmt.Errorf("unknown field in where clause: %s", field)
		}

		if op == "~" || op == "!~" {
			re, err := regexp.Compile(value)
			if err != nil {
				return nil, fmt.Errorf("invalid regex in where clause '%s': %w", clause, err)
			}
			wc.regex = re
		}
		return wc, nil
	}

	return nil, fmt.Errorf("no valid operator found in where clause: %s (use =, !=, ~, !~, >=, <=, ^, $)", clause)
}

// Match checks if a record matches this where clause
func (wc *WhereClause) Match(r *domain.Record) bool {
	key := strings.ToLower(wc.Field)
	if numericFields[key] {
		return wc.matchNumber(r, key)
	}
	if key == "date" {
		return wc.matchDate(r)
	}

	fieldValue := wc.fieldValue(r, key)
	switch wc.Operator {
	case "=":
		return strings.EqualFold(fieldValue, wc.Value)
	case "!=":
		return !strings.EqualFold(fieldValue, wc.Value)
	case "~":
		return wc.regex.MatchString(fieldValue)
	case "!~":
		return !wc.regex.MatchString(fieldValue)
	case "^":
		return strings.HasPrefix(fieldValue, wc.Value)
	case "$":
		return strings.HasSuffix(fieldValue, wc.Value)
	}
	return false
}

func (wc *WhereClause) fieldValue(r *domain.Record, key string) string {
	switch key {
	case "id":
		return r.ID
	case "lot":
		return r.Lot
	case "domain":
		return string(r.Domain)
	case "department":
		return r.Department
	case "errortype":
		return r.ErrorType
	case "issuetype":
		return r.IssueType
	case "stage":
		return r.Stage
	case "form":
		return r.Form
	case "status":
		return string(r.Status)
	default:
		return ""
	}
}

// matchNumber compares optional numeric fields; an absent value never matches
func (wc *WhereClause) matchNumber(r *domain.Record, key string) bool {
	var v *float64
	switch key {
	case "sentiment":
		v = r.Sentiment
	case "durationhours":
		v = r.DurationHours
	}
	if v == nil {
		return false
	}
	switch wc.Operator {
	case "=":
		return *v == wc.number
	case "!=":
		return *v != wc.number
	case ">=":
		return *v >= wc.number
	case "<=":
		return *v <= wc.number
	}
	return false
}

func (wc *WhereClause) matchDate(r *domain.Record) bool {
	switch wc.Operator {
	case "=":
		return r.Date.Equal(wc.date)
	case "!=":
		return !r.Date.Equal(wc.date)
	case ">=":
		return !r.Date.Before(wc.date)
	case "<=":
		return !r.Date.After(wc.date)
	}
	return false
}

// WhereFilter applies multiple where clauses (AND logic)
type WhereFilter struct {
	clauses []*WhereClause
}

// NewWhereFilter creates a filter from multiple where clause strings. It
// returns nil when no clauses are given.
func NewWhereFilter(whereClauses []string) (*WhereFilter, error) {
	if len(whereClauses) == 0 {
		return nil, nil
	}

	f := &WhereFilter{}
	for _, clause := range whereClauses {
		wc, err := ParseWhereClause(clause)
		if err != nil {
			return nil, err
		}
		f.clauses = append(f.clauses, wc)
	}
	return f, nil
}

// Match returns true if the record matches ALL where clauses
func (f *WhereFilter) Match(r *domain.Record) bool {
	if f == nil {
		return true
	}
	for _, wc := range f.clauses {
		if !wc.Match(r) {
			return false
		}
	}
	return true
}
