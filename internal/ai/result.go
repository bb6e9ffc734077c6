package ai

import (
	"encoding/json"
	"strconv"
	"strings"

	"atsforge/internal/errors"
)

// ModelResult is the validated payload of one optimization response
type ModelResult struct {
	OptimizedContent     string
	OptimizedCoverLetter *string
	Suggestions          string
	ATSScore             int
}

// modelPayload mirrors the JSON object the model is instructed to return.
// ats_score is kept raw because models return it as a number or a numeric
// string interchangeably.
type modelPayload struct {
	OptimizedLatex       string          `json:"optimized_latex"`
	OptimizedCoverLetter string          `json:"optimized_cover_letter"`
	Suggestions          string          `json:"suggestions"`
	ATSScore             json.RawMessage `json:"ats_score"`
}

// ParseModelContent validates the model's textual response. Unparsable JSON
// and missing required fields map to distinct error kinds so callers can
// tell a broken transport from a model that ignored the output contract.
func ParseModelContent(content string) (*ModelResult, error) {
	var payload modelPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, errors.NewMalformedUpstream(errors.ErrCodeModelBadJSON,
			"model response is not valid JSON", err)
	}

	var missing []string
	if payload.OptimizedLatex == "" {
		missing = append(missing, "optimized_latex")
	}
	if payload.Suggestions == "" {
		missing = append(missing, "suggestions")
	}
	if len(payload.ATSScore) == 0 {
		missing = append(missing, "ats_score")
	}
	if len(missing) > 0 {
		return nil, errors.NewIncompleteUpstream(errors.ErrCodeModelMissingFields,
			"model response missing required fields: "+strings.Join(missing, ", "))
	}

	score, err := parseATSScore(payload.ATSScore)
	if err != nil {
		return nil, err
	}

	result := &ModelResult{
		OptimizedContent: payload.OptimizedLatex,
		Suggestions:      payload.Suggestions,
		ATSScore:         score,
	}
	if payload.OptimizedCoverLetter != "" {
		letter := payload.OptimizedCoverLetter
		result.OptimizedCoverLetter = &letter
	}
	return result, nil
}

// parseATSScore accepts a JSON number or a numeric string and clamps the
// value to [0, 100]. Anything non-numeric counts as a missing field.
func parseATSScore(raw json.RawMessage) (int, error) {
	var num float64
	if err := json.Unmarshal(raw, &num); err != nil {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, errors.NewIncompleteUpstream(errors.ErrCodeModelMissingFields,
				"model response field ats_score is not numeric")
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return 0, errors.NewIncompleteUpstream(errors.ErrCodeModelMissingFields,
				"model response field ats_score is not numeric")
		}
		num = parsed
	}

	score := int(num)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}
