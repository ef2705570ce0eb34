// Package adapters implements the per-site Source Adapter contract: a
// stateless step function that, given user-supplied values and the current
// stage, issues at most one outbound request and returns a Step describing
// what it found and what stage to resume from.
package adapters

import "encoding/json"

// Stage is one variant of an adapter's resumable state machine. Each
// concrete stage type carries only the fields it needs and reports a stable
// integer discriminator so task state surviving a restart can be decoded
// back into the right variant.
type Stage interface {
	StageIndex() int
}

// taskState is the on-disk shape of a Source's task_json column: the
// stage's own fields flattened alongside the discriminator and an optional
// error counter.
type taskState struct {
	Index int  `json:"_index"`
	Error *int `json:"_error,omitempty"`
}

// EncodeTaskState serializes a stage plus its consecutive-error counter into
// the JSON blob stored on the Source row. A nil stage (full-cycle reset)
// encodes as JSON null.
func EncodeTaskState(stage Stage, errorCount int) (json.RawMessage, error) {
	if stage == nil {
		return json.RawMessage("null"), nil
	}

	fields, err := json.Marshal(stage)
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(fields, &merged); err != nil {
		return nil, err
	}
	if merged == nil {
		merged = make(map[string]json.RawMessage)
	}

	indexJSON, err := json.Marshal(stage.StageIndex())
	if err != nil {
		return nil, err
	}
	merged["_index"] = indexJSON

	if errorCount > 0 {
		errJSON, err := json.Marshal(errorCount)
		if err != nil {
			return nil, err
		}
		merged["_error"] = errJSON
	}

	return json.Marshal(merged)
}

// DecodeTaskState recovers the stage variant and error counter from a
// Source's stored task_json. newStage is the adapter's own factory mapping
// a discriminator to a zero-value pointer of the matching stage type, ready
// for json.Unmarshal to populate. A nil/absent blob yields the adapter's
// initial stage with a zero error counter.
func DecodeTaskState(raw json.RawMessage, initial Stage, newStage func(index int) Stage) (Stage, int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return initial, 0, nil
	}

	var header taskState
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, 0, err
	}

	stage := newStage(header.Index)
	if stage == nil {
		return initial, 0, nil
	}
	if err := json.Unmarshal(raw, stage); err != nil {
		return nil, 0, err
	}

	errorCount := 0
	if header.Error != nil {
		errorCount = *header.Error
	}
	return stage, errorCount, nil
}
