package orchestrator

import (
	"fmt"
	"strings"

	"github.com/themis-legal/themis/pkg/models"
)

// ValidateMatter checks that a matter payload carries the fields the
// agents depend on. It returns the matter unchanged so call sites can
// chain it.
func ValidateMatter(matter models.Matter, requireDocuments bool) (models.Matter, error) {
	if matter == nil {
		return nil, &ValidationError{Field: "matter", Message: "matter payload is required"}
	}

	summary, ok := matter["summary"]
	if !ok {
		return nil, &ValidationError{Field: "summary", Message: "matter must include a summary"}
	}
	if s, isStr := summary.(string); !isStr || strings.TrimSpace(s) == "" {
		return nil, &ValidationError{Field: "summary", Message: "summary must be a non-empty string"}
	}

	parties, ok := matter["parties"]
	if !ok {
		return nil, &ValidationError{Field: "parties", Message: "matter must include parties"}
	}
	if !isSlice(parties) {
		return nil, &ValidationError{Field: "parties", Message: fmt.Sprintf("parties must be a list, got %T", parties)}
	}

	documents, ok := matter["documents"]
	if requireDocuments && !ok {
		return nil, &ValidationError{Field: "documents", Message: "matter must include documents"}
	}
	if ok && !isSlice(documents) {
		return nil, &ValidationError{Field: "documents", Message: fmt.Sprintf("documents must be a list, got %T", documents)}
	}

	return matter, nil
}

// ValidatePlanID trims and checks a plan identifier.
func ValidatePlanID(planID string) (string, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return "", &ValidationError{Field: "plan_id", Message: "plan ID cannot be empty"}
	}
	return planID, nil
}

// ValidateExecuteParams checks the matter/planID pair passed to the
// execute variants. At least one must be set.
func ValidateExecuteParams(matter models.Matter, planID string) (models.Matter, string, error) {
	if matter == nil && planID == "" {
		return nil, "", &ValidationError{Message: "either matter or plan_id must be provided"}
	}

	var err error
	if planID != "" {
		if planID, err = ValidatePlanID(planID); err != nil {
			return nil, "", err
		}
	}
	if matter != nil {
		if matter, err = ValidateMatter(matter, true); err != nil {
			return nil, "", err
		}
	}
	return matter, planID, nil
}

func isSlice(v any) bool {
	switch v.(type) {
	case []any, []string, []map[string]any:
		return true
	}
	return false
}
