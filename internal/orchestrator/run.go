package orchestrator

import (
	"context"
	"fmt"
	"log"

	"github.com/themis-legal/themis/internal/agents"
	"github.com/themis-legal/themis/internal/retry"
	"github.com/themis-legal/themis/internal/taskgraph"
	"github.com/themis-legal/themis/pkg/models"
)

// Execute runs a plan end to end. Exactly one of matter and planID must
// be useful: with a plan ID the stored plan runs (its matter replaced
// when one is also given), otherwise a fresh plan is created first.
func (s *Service) Execute(ctx context.Context, matter models.Matter, planID string) (*models.ExecutionRecord, error) {
	plan, err := s.resolvePlan(ctx, matter, planID)
	if err != nil {
		return nil, err
	}
	return s.runPlan(ctx, plan, runOptions{})
}

// ExecuteStream runs a plan like Execute while pushing progress events
// into sink as each agent starts, completes, or fails.
func (s *Service) ExecuteStream(ctx context.Context, matter models.Matter, planID string, sink EventSink) (*models.ExecutionRecord, error) {
	plan, err := s.resolvePlan(ctx, matter, planID)
	if err != nil {
		return nil, err
	}
	return s.runPlan(ctx, plan, runOptions{sink: sink})
}

// ReExecute runs a plan again. By default it resumes at the first failed
// step of the previous execution, replaying completed steps from the
// stored record instead of re-running their agents. An explicit fromStep
// overrides the resume point; with resumeFromFailure false and no
// fromStep the whole plan re-runs.
func (s *Service) ReExecute(ctx context.Context, planID, fromStep string, resumeFromFailure bool) (*models.ExecutionRecord, error) {
	planID, err := ValidatePlanID(planID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	st, err := s.loadStateLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	plan := st.RecallPlan(planID)
	previous := st.RecallExecution(planID)
	s.mu.Unlock()

	if plan == nil {
		return nil, &PlanNotFoundError{PlanID: planID}
	}

	startStepID := fromStep
	if startStepID == "" && resumeFromFailure && previous != nil {
		startStepID = previous.FirstFailedStep()
	}
	log.Printf("[orchestrator] re-executing %s from step %q", planID, startStepID)

	return s.runPlan(ctx, plan, runOptions{
		startStepID: startStepID,
		previous:    previous,
		reExecution: true,
	})
}

// runOptions parameterizes one pass of the execution loop.
type runOptions struct {
	// sink receives progress events; nil disables them.
	sink EventSink
	// startStepID resumes execution at this step, replaying the previous
	// record's completed prefix. Empty runs from the beginning.
	startStepID string
	// previous is the stored record whose completed steps are replayed.
	previous *models.ExecutionRecord
	// reExecution marks the produced record as a resumed run.
	reExecution bool
}

// runPlan is the single execution loop behind Execute, ExecuteStream,
// and ReExecute. It walks the plan's graph in topological order, invokes
// each step's agent behind the retry policy and that agent's circuit
// breaker, runs supporting agents, hoists declared artifacts into the
// propagated context, and evaluates phase exit conditions.
func (s *Service) runPlan(ctx context.Context, plan *models.Plan, opts runOptions) (*models.ExecutionRecord, error) {
	emit := func(ev Event) {
		if opts.sink != nil {
			opts.sink(ev)
		}
	}
	graph, err := s.graphFor(plan)
	if err != nil {
		return nil, err
	}
	order, err := graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	if len(plan.Steps) == 0 {
		if plan.Steps, err = graph.ToLinearSteps(); err != nil {
			return nil, err
		}
	}

	emit(Event{Stage: StagePlanCreated, PlanID: plan.PlanID, TotalSteps: len(order)})

	planMatter := models.CopyMap(plan.Matter)
	results := make([]*models.Step, 0, len(order))
	artifacts := map[string]any{}
	propagated := map[string]any{}
	failed := false
	needsAttention := false
	tracer := s.tracerFactory()

	pastStart := opts.startStepID == ""

	// Replay the completed prefix of the previous run when resuming.
	if opts.previous != nil && opts.startStepID != "" {
		for _, prev := range opts.previous.Steps {
			if prev.ID == opts.startStepID {
				break
			}
			if prev.Status != models.StatusComplete {
				continue
			}
			results = append(results, prev.Clone())
			if prev.Output != nil {
				artifacts[prev.Agent] = models.CopyMap(prev.Output)
				propagated[prev.Agent] = models.CopyMap(prev.Output)
			}
			for name, value := range prev.Artifacts {
				propagated[name] = value
				planMatter[name] = value
			}
		}
	}

	currentStep := 0
	totalSteps := len(order)

	for _, node := range order {
		currentStep++

		step := plan.StepByID(node.ID)
		if step == nil {
			step = taskgraph.StepFromNode(node)
		}

		if !pastStart {
			if step.ID == opts.startStepID {
				pastStart = true
			} else {
				continue
			}
		}
		if containsStep(results, step.ID) {
			continue
		}

		resetStepOutcome(step)

		emit(Event{
			Stage:      StageAgentStarted,
			Agent:      step.Agent,
			Step:       currentStep,
			TotalSteps: totalSteps,
			Phase:      step.Phase,
		})

		agent, agentErr := s.agents.Get(step.Agent)
		if agentErr != nil {
			step.Status = models.StatusFailed
			step.Error = agentErr.Error()
			failed = true
			emit(Event{Stage: StageAgentFailed, Agent: step.Agent, Error: step.Error})
			results = append(results, step.Clone())
			continue
		}

		tracer.Record("phase_start", map[string]any{
			"node_id": step.ID,
			"agent":   step.Agent,
			"phase":   step.Phase,
		})
		s.attachTracer(agent, tracer, step.ID)

		agentInput := s.buildAgentInput(planMatter, propagated, step)

		res := s.invokeAgent(ctx, "agent:"+step.Agent, agent, agentInput)
		if res.Attempts > 1 {
			step.RetryAttempts = res.Attempts
		}

		if !res.Success {
			step.Status = models.StatusFailed
			step.Error = errString(res.LastErr)
			failed = true
			emit(Event{Stage: StageAgentFailed, Agent: step.Agent, Error: step.Error})
			tracer.Record("phase_complete", map[string]any{
				"node_id": step.ID,
				"agent":   step.Agent,
				"status":  string(step.Status),
			})
			results = append(results, step.Clone())
			continue
		}

		output := res.Value
		step.Status = models.StatusComplete
		step.Output = output
		artifacts[step.Agent] = output
		propagated[step.Agent] = output

		if produced := collectExpectedArtifacts(output, step.ExpectedArtifacts); len(produced) > 0 {
			for name, value := range produced {
				propagated[name] = value
				planMatter[name] = value
			}
			step.Artifacts = produced
		}

		tracer.Record("phase_complete", map[string]any{
			"node_id": step.ID,
			"agent":   step.Agent,
			"status":  string(step.Status),
		})

		emit(Event{
			Stage:      StageAgentCompleted,
			Agent:      step.Agent,
			Step:       currentStep,
			TotalSteps: totalSteps,
		})

		supportFailed := s.runSupportingAgents(ctx, step, planMatter, propagated, tracer)
		if supportFailed {
			step.Status = models.StatusFailed
			failed = true
			emit(Event{Stage: StageAgentFailed, Agent: step.Agent, Error: "supporting agent failed"})
			results = append(results, step.Clone())
			continue
		}

		if step.Status == models.StatusComplete {
			signals := mergeSignals(planMatter, propagated)
			if missing := s.policy.EvaluateExitConditions(step, signals); len(missing) > 0 {
				step.Status = models.StatusAttentionRequired
				step.MissingSignals = missing
				needsAttention = true
			}
		}

		results = append(results, step.Clone())
	}

	status := models.StatusComplete
	if failed {
		status = models.StatusFailed
	} else if needsAttention {
		status = models.StatusAttentionRequired
	}

	record := &models.ExecutionRecord{
		PlanID:      plan.PlanID,
		Status:      status,
		Steps:       results,
		Artifacts:   artifacts,
		Trace:       tracer.Events(),
		ReExecution: opts.reExecution,
	}

	plan.Status = status
	if err := s.persistOutcome(plan, record); err != nil {
		return nil, err
	}

	emit(Event{
		Stage:          StageExecutionComplete,
		Status:         string(status),
		PlanID:         plan.PlanID,
		ArtifactsCount: len(artifacts),
	})

	return record.Clone(), nil
}

// graphFor reconstructs the plan's task graph, falling back to the
// linear steps when the graph document is absent.
func (s *Service) graphFor(plan *models.Plan) (*taskgraph.Graph, error) {
	if plan.Graph != nil && len(plan.Graph.Nodes) > 0 {
		return taskgraph.FromDoc(plan.Graph)
	}
	return taskgraph.FromLinearSteps(plan.Steps)
}

// buildAgentInput assembles the input map for one step: the accumulated
// plan matter, the propagated outputs overlaid on top, any resolved
// connectors, and for the drafting agent a pinned document type.
func (s *Service) buildAgentInput(planMatter models.Matter, propagated map[string]any, step *models.Step) map[string]any {
	input := models.CopyMap(planMatter)
	for name, value := range propagated {
		input[name] = value
	}

	if resolved := s.connectors.Resolve(step.RequiredConnectors); len(resolved) > 0 {
		conns, _ := input["connectors"].(map[string]any)
		if conns == nil {
			conns = map[string]any{}
		}
		for name, payload := range resolved {
			conns[name] = payload
		}
		input["connectors"] = conns
	}

	if step.Agent == "dda" {
		s.pinDocumentType(input)
	}
	return input
}

// pinDocumentType writes the resolved document type both at the top
// level and into metadata so the drafting agent and downstream readers
// agree. Priority: output_format.document_type, then document_type, then
// metadata.document_type, then auto-detection.
func (s *Service) pinDocumentType(input map[string]any) {
	docType := ""
	if outputFormat, ok := input["output_format"].(map[string]any); ok {
		docType, _ = outputFormat["document_type"].(string)
	}
	if docType == "" {
		docType, _ = input["document_type"].(string)
	}
	if docType == "" {
		if meta, ok := input["metadata"].(map[string]any); ok {
			docType, _ = meta["document_type"].(string)
		}
	}
	if docType == "" {
		docType = agents.DetectDocumentType(input)
		log.Printf("[orchestrator] auto-detected document type %q", docType)
	}

	input["document_type"] = docType
	meta, _ := input["metadata"].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["document_type"] = docType
	input["metadata"] = meta
}

// invokeAgent runs one agent call behind the retry policy and the
// agent's circuit breaker. Breaker rejections surface as attempt errors,
// so an open breaker fails the step quickly instead of hammering a
// broken agent.
func (s *Service) invokeAgent(ctx context.Context, label string, agent agents.Agent, input map[string]any) retry.Result[map[string]any] {
	br := s.breakers.GetOrCreate(agent.Name())
	return retry.Do(ctx, s.retryPolicy, label, func(ctx context.Context) (map[string]any, error) {
		var output map[string]any
		err := br.Do(ctx, func(ctx context.Context) error {
			var runErr error
			output, runErr = agent.Run(ctx, input)
			return runErr
		})
		return output, err
	})
}

// runSupportingAgents executes a step's supporting agents after the
// primary succeeded. A supporting failure fails the whole step.
func (s *Service) runSupportingAgents(ctx context.Context, step *models.Step, planMatter models.Matter, propagated map[string]any, tracer traceRecorder) bool {
	if len(step.SupportingAgents) == 0 {
		return false
	}

	supportFailed := false
	outputs := make([]*models.SupportResult, 0, len(step.SupportingAgents))

	for _, spec := range step.SupportingAgents {
		result := &models.SupportResult{
			Agent:       spec.Agent,
			Role:        spec.Role,
			Description: spec.Description,
		}

		agent, err := s.agents.Get(spec.Agent)
		if err != nil {
			result.Status = models.StatusFailed
			result.Error = err.Error()
			supportFailed = true
			outputs = append(outputs, result)
			continue
		}

		s.attachTracer(agent, tracer, fmt.Sprintf("%s::support::%s", step.ID, spec.Agent))

		input := models.CopyMap(planMatter)
		for name, value := range propagated {
			input[name] = value
		}
		input["primary_agent"] = step.Agent
		input["primary_output"] = step.Output
		input["phase"] = step.Phase
		input["support_role"] = spec.Role

		res := s.invokeAgent(ctx, "support:"+spec.Agent, agent, input)
		if res.Attempts > 1 {
			result.RetryAttempts = res.Attempts
		}

		if !res.Success {
			result.Status = models.StatusFailed
			result.Error = errString(res.LastErr)
			supportFailed = true
			outputs = append(outputs, result)
			continue
		}

		result.Status = models.StatusComplete
		result.Output = res.Value
		propagated[spec.Agent] = res.Value

		if produced := collectExpectedArtifacts(res.Value, spec.ExpectedArtifacts); len(produced) > 0 {
			for name, value := range produced {
				propagated[name] = value
				planMatter[name] = value
			}
			result.Artifacts = produced
		}
		outputs = append(outputs, result)
	}

	step.SupportingOutputs = outputs
	return supportFailed
}

// traceRecorder is the slice of tracing.Recorder the run loop needs.
type traceRecorder interface {
	Record(name string, fields map[string]any)
}

func (s *Service) attachTracer(agent agents.Agent, tracer traceRecorder, nodeID string) {
	aware, ok := agent.(agents.TracerAware)
	if !ok {
		return
	}
	aware.SetTracer(func(name string, fields map[string]any) {
		merged := models.CopyMap(fields)
		if merged == nil {
			merged = map[string]any{}
		}
		merged["node_id"] = nodeID
		tracer.Record(name, merged)
	})
}

// collectExpectedArtifacts hoists declared artifacts out of an agent
// payload. Each expected name is looked up at the top level first, then
// searched for inside nested maps.
func collectExpectedArtifacts(payload map[string]any, expected []models.ArtifactSpec) map[string]any {
	if len(expected) == 0 {
		return nil
	}
	collected := map[string]any{}
	for _, spec := range expected {
		if spec.Name == "" {
			continue
		}
		value, ok := payload[spec.Name]
		if !ok || value == nil {
			value = findNestedArtifact(payload, spec.Name)
		}
		if value != nil {
			collected[spec.Name] = value
		}
	}
	if len(collected) == 0 {
		return nil
	}
	return collected
}

func findNestedArtifact(payload map[string]any, name string) any {
	for _, value := range payload {
		nested, ok := value.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := nested[name]; ok {
			return v
		}
		if v := findNestedArtifact(nested, name); v != nil {
			return v
		}
	}
	return nil
}

func mergeSignals(planMatter models.Matter, propagated map[string]any) map[string]any {
	merged := make(map[string]any, len(planMatter)+len(propagated))
	for k, v := range planMatter {
		merged[k] = v
	}
	for k, v := range propagated {
		merged[k] = v
	}
	return merged
}

// resetStepOutcome clears the outcome a previous run left on a plan step
// so the new run starts from a clean slate.
func resetStepOutcome(step *models.Step) {
	step.Status = models.StatusPending
	step.Output = nil
	step.Error = ""
	step.Artifacts = nil
	step.RetryAttempts = 0
	step.SupportingOutputs = nil
	step.MissingSignals = nil
}

func containsStep(steps []*models.Step, id string) bool {
	for _, s := range steps {
		if s.ID == id {
			return true
		}
	}
	return false
}

func errString(err error) string {
	if err == nil {
		return "agent execution failed"
	}
	return err.Error()
}
