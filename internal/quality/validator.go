// Package quality validates records against declarative expectations.
package quality

import (
	"fmt"
	"regexp"
	"slices"
	"time"
	"unicode/utf8"
)

// Severity of a failed expectation. Only ERROR failures make a report invalid.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Record is one row of data keyed by column.
type Record map[string]any

// Result is the outcome of one expectation against one record.
type Result struct {
	Rule     string   `json:"rule_name"`
	Passed   bool     `json:"passed"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Column   string   `json:"column,omitempty"`
	Value    any      `json:"value,omitempty"`
	Expected any      `json:"expected,omitempty"`
}

// Report aggregates the results of a validation run.
type Report struct {
	Timestamp   time.Time `json:"timestamp"`
	Total       int       `json:"total_rules"`
	Passed      int       `json:"passed_rules"`
	Failed      int       `json:"failed_rules"`
	SuccessRate float64   `json:"success_rate"`
	IsValid     bool      `json:"is_valid"`
	Results     []Result  `json:"results"`
}

func (r *Report) add(res Result) {
	r.Total++
	if res.Passed {
		r.Passed++
	} else {
		r.Failed++
	}
}

func (r *Report) finish() {
	r.SuccessRate = 100
	if r.Total > 0 {
		r.SuccessRate = float64(r.Passed) / float64(r.Total) * 100
	}
	r.IsValid = true
	for _, res := range r.Results {
		if !res.Passed && res.Severity == SeverityError {
			r.IsValid = false
			break
		}
	}
}

// Problems returns the messages of failed ERROR results.
func (r *Report) Problems() []string {
	var out []string
	for _, res := range r.Results {
		if !res.Passed && res.Severity == SeverityError {
			out = append(out, res.Message)
		}
	}
	return out
}

// Warnings returns the messages of failed non-ERROR results.
func (r *Report) Warnings() []string {
	var out []string
	for _, res := range r.Results {
		if !res.Passed && res.Severity != SeverityError {
			out = append(out, res.Message)
		}
	}
	return out
}

type expectation struct {
	column   string
	severity Severity
	// unique is evaluated across a batch, not per record.
	unique bool
	check  func(rec Record) Result
}

// Validator holds an ordered list of expectations.
type Validator struct {
	expectations []expectation
	now          func() time.Time
}

func NewValidator() *Validator {
	return &Validator{now: func() time.Time { return time.Now().UTC() }}
}

func (v *Validator) add(column string, sev Severity, check func(rec Record) Result) *Validator {
	v.expectations = append(v.expectations, expectation{column: column, severity: sev, check: check})
	return v
}

func firstSeverity(sev []Severity, def Severity) Severity {
	if len(sev) > 0 {
		return sev[0]
	}
	return def
}

// ExpectColumn requires column to be present.
func (v *Validator) ExpectColumn(column string, sev ...Severity) *Validator {
	s := firstSeverity(sev, SeverityError)
	return v.add(column, s, func(rec Record) Result {
		_, ok := rec[column]
		msg := fmt.Sprintf("%s is missing", column)
		if ok {
			msg = fmt.Sprintf("%s exists", column)
		}
		return Result{Rule: "expect_column_to_exist_" + column, Passed: ok, Severity: s, Message: msg, Column: column}
	})
}

// ExpectNotEmpty rejects nil and empty-string values.
func (v *Validator) ExpectNotEmpty(column string, sev ...Severity) *Validator {
	s := firstSeverity(sev, SeverityError)
	return v.add(column, s, func(rec Record) Result {
		val := rec[column]
		ok := val != nil && val != ""
		msg := fmt.Sprintf("%s is required", column)
		if ok {
			msg = fmt.Sprintf("%s is set", column)
		}
		return Result{Rule: "expect_column_values_to_not_be_null_" + column, Passed: ok, Severity: s, Message: msg, Column: column, Value: val}
	})
}

// ExpectMatch requires the string form of the value to match re.
func (v *Validator) ExpectMatch(column string, re *regexp.Regexp, sev ...Severity) *Validator {
	s := firstSeverity(sev, SeverityError)
	return v.add(column, s, func(rec Record) Result {
		val := rec[column]
		str := stringOf(val)
		ok := str != "" && re.MatchString(str)
		msg := fmt.Sprintf("%s has an invalid format", column)
		if ok {
			msg = fmt.Sprintf("%s matches pattern", column)
		}
		return Result{Rule: "expect_column_values_to_match_regex_" + column, Passed: ok, Severity: s, Message: msg,
			Column: column, Value: val, Expected: re.String()}
	})
}

// ExpectInSet requires the value to be one of allowed. A missing column is compared as "".
func (v *Validator) ExpectInSet(column string, allowed []string, sev ...Severity) *Validator {
	s := firstSeverity(sev, SeverityError)
	return v.add(column, s, func(rec Record) Result {
		val, present := rec[column]
		str, isStr := val.(string)
		ok := (isStr || !present) && slices.Contains(allowed, str)
		msg := fmt.Sprintf("%s %q is not in the allowed set", column, stringOf(val))
		if ok {
			msg = fmt.Sprintf("%s is in the allowed set", column)
		}
		return Result{Rule: "expect_column_values_to_be_in_set_" + column, Passed: ok, Severity: s, Message: msg,
			Column: column, Value: val, Expected: allowed}
	})
}

// ExpectBetween requires a numeric value within [lo, hi].
func (v *Validator) ExpectBetween(column string, lo, hi float64, sev ...Severity) *Validator {
	s := firstSeverity(sev, SeverityError)
	return v.add(column, s, func(rec Record) Result {
		val := rec[column]
		n, isNum := number(val)
		ok := isNum && n >= lo && n <= hi
		msg := fmt.Sprintf("%s must be between %g and %g", column, lo, hi)
		if ok {
			msg = fmt.Sprintf("%s is between %g and %g", column, lo, hi)
		}
		return Result{Rule: "expect_column_values_to_be_between_" + column, Passed: ok, Severity: s, Message: msg,
			Column: column, Value: val, Expected: fmt.Sprintf("%g-%g", lo, hi)}
	})
}

// ExpectLength requires the string form of the value to have lo..hi characters.
func (v *Validator) ExpectLength(column string, lo, hi int, sev ...Severity) *Validator {
	s := firstSeverity(sev, SeverityError)
	return v.add(column, s, func(rec Record) Result {
		str := stringOf(rec[column])
		n := utf8.RuneCountInString(str)
		ok := n >= lo && n <= hi
		msg := fmt.Sprintf("%s must be between %d and %d characters", column, lo, hi)
		if ok {
			msg = fmt.Sprintf("%s length %d is between %d and %d", column, n, lo, hi)
		}
		return Result{Rule: "expect_column_value_length_to_be_between_" + column, Passed: ok, Severity: s, Message: msg,
			Column: column, Value: str, Expected: fmt.Sprintf("length %d-%d", lo, hi)}
	})
}

// ExpectUnique requires column values to be distinct across a batch. Single records always pass.
func (v *Validator) ExpectUnique(column string, sev ...Severity) *Validator {
	s := firstSeverity(sev, SeverityWarning)
	v.expectations = append(v.expectations, expectation{column: column, severity: s, unique: true})
	return v
}

// ExpectFunc adds a custom rule. A panic in fn counts as a failure.
func (v *Validator) ExpectFunc(name, message string, fn func(Record) bool, sev ...Severity) *Validator {
	s := firstSeverity(sev, SeverityError)
	return v.add("", s, func(rec Record) (res Result) {
		res = Result{Rule: name, Severity: s, Message: message}
		defer func() {
			if recover() != nil {
				res.Passed = false
			}
		}()
		res.Passed = fn(rec)
		return res
	})
}

// Validate runs every expectation against one record.
func (v *Validator) Validate(rec Record) *Report {
	rep := &Report{Timestamp: v.now()}
	for _, e := range v.expectations {
		var res Result
		if e.unique {
			res = Result{Rule: "expect_column_values_to_be_unique_" + e.column, Passed: true, Severity: e.severity,
				Message: fmt.Sprintf("%s is unique", e.column), Column: e.column}
		} else {
			res = e.check(rec)
		}
		rep.add(res)
		rep.Results = append(rep.Results, res)
	}
	rep.finish()
	return rep
}

// ValidateBatch validates each record and keeps only failures, prefixed with the record index.
func (v *Validator) ValidateBatch(records []Record) *Report {
	rep := &Report{Timestamp: v.now()}
	seen := map[string]map[string]int{}
	for i, rec := range records {
		for _, e := range v.expectations {
			var res Result
			if e.unique {
				res = v.checkUnique(e, rec, i, seen)
			} else {
				res = e.check(rec)
			}
			rep.add(res)
			if !res.Passed {
				res.Message = fmt.Sprintf("Record %d: %s", i, res.Message)
				rep.Results = append(rep.Results, res)
			}
		}
	}
	rep.finish()
	return rep
}

func (v *Validator) checkUnique(e expectation, rec Record, idx int, seen map[string]map[string]int) Result {
	res := Result{Rule: "expect_column_values_to_be_unique_" + e.column, Passed: true, Severity: e.severity,
		Message: fmt.Sprintf("%s is unique", e.column), Column: e.column}
	val, ok := rec[e.column]
	if !ok || val == nil {
		return res
	}
	key := stringOf(val)
	values := seen[e.column]
	if values == nil {
		values = map[string]int{}
		seen[e.column] = values
	}
	if first, dup := values[key]; dup {
		res.Passed = false
		res.Value = val
		res.Message = fmt.Sprintf("%s %q duplicates record %d", e.column, key, first)
		return res
	}
	values[key] = idx
	return res
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}
