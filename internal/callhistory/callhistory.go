// Package callhistory reads stored call objects as typed views and
// computes workspace call statistics.
package callhistory

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/troikatech/agent-console/internal/tenant"
)

const SentimentNegative = "Negative"

type TranscriptEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Analysis struct {
	CallSummary               string `json:"call_summary"`
	UserSentiment             string `json:"user_sentiment"`
	CallSuccessful            *bool  `json:"call_successful,omitempty"`
	AgentTaskCompletionRating string `json:"agent_task_completion_rating,omitempty"`
}

// Call is the part of a platform call object the console reads.
type Call struct {
	CallID              string            `json:"call_id"`
	AgentID             string            `json:"agent_id"`
	CallStatus          string            `json:"call_status"`
	CallType            string            `json:"call_type,omitempty"`
	StartTimestamp      float64           `json:"start_timestamp"`
	EndTimestamp        float64           `json:"end_timestamp"`
	DurationMs          float64           `json:"duration_ms"`
	Transcript          string            `json:"transcript"`
	TranscriptObject    []TranscriptEntry `json:"transcript_object,omitempty"`
	RecordingURL        string            `json:"recording_url"`
	DisconnectionReason string            `json:"disconnection_reason"`
	Analysis            *Analysis         `json:"call_analysis,omitempty"`
}

// FromRecord decodes the verbatim call object of rec field by field. A
// field of the wrong type stays zero instead of failing the whole call;
// numbers and booleans sent as strings are accepted.
func FromRecord(rec tenant.CallRecord) (Call, error) {
	raw, err := json.Marshal(rec.Call)
	if err != nil {
		return Call{CallID: rec.CallID}, fmt.Errorf("failed to encode call %q: %w", rec.CallID, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Call{CallID: rec.CallID}, fmt.Errorf("failed to decode call %q: %w", rec.CallID, err)
	}

	call := Call{
		CallID:              str(fields["call_id"]),
		AgentID:             str(fields["agent_id"]),
		CallStatus:          str(fields["call_status"]),
		CallType:            str(fields["call_type"]),
		StartTimestamp:      num(fields["start_timestamp"]),
		EndTimestamp:        num(fields["end_timestamp"]),
		DurationMs:          num(fields["duration_ms"]),
		Transcript:          str(fields["transcript"]),
		RecordingURL:        str(fields["recording_url"]),
		DisconnectionReason: str(fields["disconnection_reason"]),
	}
	if call.CallID == "" {
		call.CallID = rec.CallID
	}
	_ = json.Unmarshal(fields["transcript_object"], &call.TranscriptObject)

	var analysis map[string]json.RawMessage
	if json.Unmarshal(fields["call_analysis"], &analysis) == nil && analysis != nil {
		call.Analysis = &Analysis{
			CallSummary:               str(analysis["call_summary"]),
			UserSentiment:             str(analysis["user_sentiment"]),
			CallSuccessful:            boolean(analysis["call_successful"]),
			AgentTaskCompletionRating: str(analysis["agent_task_completion_rating"]),
		}
	}
	return call, nil
}

func str(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

func num(raw json.RawMessage) float64 {
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return f
	}
	if v, err := strconv.ParseFloat(str(raw), 64); err == nil {
		return v
	}
	return 0
}

func boolean(raw json.RawMessage) *bool {
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return &b
	}
	if v, err := strconv.ParseBool(str(raw)); err == nil {
		return &v
	}
	return nil
}

// Stats mirrors the dashboard header. Ratios are percentages.
type Stats struct {
	TotalCalls             int     `json:"total_calls"`
	AvgDurationMs          float64 `json:"avg_duration_ms"`
	NegativeSentimentRatio float64 `json:"negative_sentiment_ratio"`
	SuccessRatio           float64 `json:"success_ratio"`
}

// Summarize returns zeros for an empty slice.
func Summarize(calls []Call) Stats {
	var acc Accumulator
	for _, c := range calls {
		acc.Add(c)
	}
	return acc.Stats()
}

// Accumulator builds Stats one call at a time so a workspace can be
// summarized without loading every record.
type Accumulator struct {
	total      int
	duration   float64
	negative   int
	successful int
}

func (a *Accumulator) Add(c Call) {
	a.total++
	a.duration += c.DurationMs
	if c.Analysis == nil {
		return
	}
	if c.Analysis.UserSentiment == SentimentNegative {
		a.negative++
	}
	if c.Analysis.CallSuccessful != nil && *c.Analysis.CallSuccessful {
		a.successful++
	}
}

func (a *Accumulator) Stats() Stats {
	stats := Stats{TotalCalls: a.total}
	if a.total == 0 {
		return stats
	}

	total := float64(a.total)
	stats.AvgDurationMs = a.duration / total
	stats.NegativeSentimentRatio = float64(a.negative) / total * 100
	stats.SuccessRatio = float64(a.successful) / total * 100
	return stats
}
