package session

import (
	"encoding/json"
	"fmt"
	"time"

	"analyst/internal/sandbox"
)

// outcomeRecord is the cached form of an execution outcome.
type outcomeRecord struct {
	Status    string           `json:"status"`
	ExitCode  int              `json:"exit_code"`
	Stdout    string           `json:"stdout"`
	Stderr    string           `json:"stderr"`
	Truncated bool             `json:"truncated,omitempty"`
	Duration  int64            `json:"duration_ms"`
	Artifacts []artifactRecord `json:"artifacts,omitempty"`
}

type artifactRecord struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

func marshalOutcome(o *sandbox.Outcome) ([]byte, error) {
	rec := outcomeRecord{
		Status:    string(o.Status),
		ExitCode:  o.ExitCode,
		Stdout:    o.Stdout,
		Stderr:    o.Stderr,
		Truncated: o.Truncated,
		Duration:  o.Duration.Milliseconds(),
	}
	for _, a := range o.Artifacts {
		rec.Artifacts = append(rec.Artifacts, artifactRecord{Name: a.Name, Data: a.Data})
	}
	return json.Marshal(rec)
}

func unmarshalOutcome(raw []byte) (*sandbox.Outcome, error) {
	var rec outcomeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode cached outcome: %w", err)
	}
	outcome := &sandbox.Outcome{
		Status:    sandbox.ExitStatus(rec.Status),
		ExitCode:  rec.ExitCode,
		Stdout:    rec.Stdout,
		Stderr:    rec.Stderr,
		Truncated: rec.Truncated,
		Duration:  time.Duration(rec.Duration) * time.Millisecond,
	}
	for _, a := range rec.Artifacts {
		outcome.Artifacts = append(outcome.Artifacts, sandbox.Artifact{Name: a.Name, Data: a.Data})
	}
	return outcome, nil
}
