package orchestrator

// Progress event stages emitted during streaming execution.
const (
	StagePlanCreated       = "plan_created"
	StageAgentStarted      = "agent_started"
	StageAgentCompleted    = "agent_completed"
	StageAgentFailed       = "agent_failed"
	StageExecutionComplete = "execution_complete"
)

// Event is one progress update from a streaming execution.
type Event struct {
	Stage          string `json:"stage"`
	PlanID         string `json:"plan_id,omitempty"`
	Agent          string `json:"agent,omitempty"`
	Step           int    `json:"step,omitempty"`
	TotalSteps     int    `json:"total_steps,omitempty"`
	Phase          string `json:"phase,omitempty"`
	Status         string `json:"status,omitempty"`
	Error          string `json:"error,omitempty"`
	ArtifactsCount int    `json:"artifacts_count,omitempty"`
}

// EventSink receives progress events. A nil sink disables streaming.
type EventSink func(Event)
