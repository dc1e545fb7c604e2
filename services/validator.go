package services

import (
	"regexp"
	"strings"

	"github.com/summerlia/zhuhaibay/models"
	"github.com/summerlia/zhuhaibay/utils"
)

// DenyRule rejects listing names that match Pattern.
type DenyRule struct {
	Name    string
	Pattern *regexp.Regexp
	Reason  string
}

// denyRules is evaluated as a logical OR, so rule order does not matter.
// Every pattern is case-insensitive and anchored to the whole name.
var denyRules = []DenyRule{
	{"internal-id", regexp.MustCompile(`(?i)^\d{11,}$`), "purely numeric id (11+ digits)"},
	{"separator", regexp.MustCompile(`(?i)^/$`), "lone separator"},
	{"building-number", regexp.MustCompile(`(?i)^\d+栋$`), "building number only"},
	{"code", regexp.MustCompile(`(?i)^[A-Z0-9]{15,}$`), "long alphanumeric code"},
	{"parking-basement", regexp.MustCompile(`(?i)^.*地下室.*车位.*$`), "basement parking sub-unit"},
	{"zoned-basement", regexp.MustCompile(`(?i)^[A-Z]区地下室.*$`), "zoned basement sub-unit"},
	{"registry-code", regexp.MustCompile(`(?i)^\d{12}[A-Z0-9]+$`), "registry code"},
}

// DenyRules returns a copy of the active rule table.
func DenyRules() []DenyRule {
	return append([]DenyRule(nil), denyRules...)
}

// Check returns the first rule rejecting name. Blank names are rejected
// with a nil rule.
func Check(name string) (*DenyRule, bool) {
	if strings.TrimSpace(name) == "" {
		return nil, false
	}
	for i := range denyRules {
		if denyRules[i].Pattern.MatchString(name) {
			return &denyRules[i], false
		}
	}
	return nil, true
}

// IsValid reports whether name looks like a real presale project.
func IsValid(name string) bool {
	_, ok := Check(name)
	return ok
}

// Validator filters parsed records down to real projects.
type Validator struct {
	logger *utils.Logger
}

// NewValidator creates a Validator with the given logger.
func NewValidator(logger *utils.Logger) *Validator {
	return &Validator{logger: logger}
}

// Filter keeps records whose names pass every deny rule.
func (v *Validator) Filter(records []models.ListingRecord) (kept []models.ListingRecord, rejected int) {
	kept = make([]models.ListingRecord, 0, len(records))
	for _, r := range records {
		r.Name = normaliseText(r.Name)
		if rule, ok := Check(r.Name); !ok {
			reason := "blank name"
			if rule != nil {
				reason = rule.Reason
			}
			v.logger.Debug("[validator] Rejecting %q: %s", r.Name, reason)
			rejected++
			continue
		}
		kept = append(kept, r)
	}

	v.logger.Info("[validator] Kept %d of %d records (rejected %d)", len(kept), len(records), rejected)
	return kept, rejected
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
