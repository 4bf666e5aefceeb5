package fleet

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	pipelineStepFailureTemplateConstant  = "%s: %s"
	pipelineStepOutputTemplateConstant   = "%s: %s"
	pipelineStepOKTemplateConstant       = "%s: ok"
	pipelineOutputJoinSeparatorConstant  = "\n"
	pipelineLogFieldPipelineNameConstant = "pipeline"
	pipelineLogFieldStepNameConstant     = "step"
	pipelineLogFieldExitCodeConstant     = "exit_code"
	pipelineStepFailedLogMessageConstant = "pipeline step failed"
	pipelineCompletedLogMessageConstant  = "pipeline completed"
)

// Step is one named operation in a pipeline, closed over a fixed repository
// argument at assembly time.
type Step struct {
	Name string
	Run  func(executionContext context.Context) OperationResult
}

// Outcome is the terminal state of a pipeline run. Exactly two shapes exist:
// Succeeded with the accumulated output, or failed with the name of the step
// that stopped the run and its diagnostic.
type Outcome struct {
	Succeeded  bool
	Output     string
	FailedStep string
	Diagnostic string
}

// Message renders the outcome as a single display string for response envelopes.
func (outcome Outcome) Message() string {
	if outcome.Succeeded {
		return outcome.Output
	}
	return fmt.Sprintf(pipelineStepFailureTemplateConstant, outcome.FailedStep, outcome.Diagnostic)
}

// Pipeline evaluates an ordered list of steps fail-fast: each step starts
// only once the previous step's result is known, and the first failure ends
// the run.
type Pipeline struct {
	name   string
	steps  []Step
	logger *zap.Logger
}

// NewPipeline assembles a pipeline from the supplied ordered steps.
func NewPipeline(name string, steps []Step, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{name: name, steps: append([]Step{}, steps...), logger: logger}
}

// Execute runs the steps in declared order, halting at the first failure.
func (pipeline *Pipeline) Execute(executionContext context.Context) Outcome {
	stepNotes := make([]string, 0, len(pipeline.steps))
	for _, step := range pipeline.steps {
		stepResult := step.Run(executionContext)
		if !stepResult.Succeeded {
			pipeline.logger.Warn(pipelineStepFailedLogMessageConstant,
				zap.String(pipelineLogFieldPipelineNameConstant, pipeline.name),
				zap.String(pipelineLogFieldStepNameConstant, step.Name),
				zap.Int(pipelineLogFieldExitCodeConstant, stepResult.ExitCode),
			)
			return Outcome{Succeeded: false, FailedStep: step.Name, Diagnostic: stepResult.Diagnostic}
		}
		stepNote := fmt.Sprintf(pipelineStepOKTemplateConstant, step.Name)
		if len(stepResult.Output) > 0 {
			stepNote = fmt.Sprintf(pipelineStepOutputTemplateConstant, step.Name, stepResult.Output)
		}
		stepNotes = append(stepNotes, stepNote)
	}

	pipeline.logger.Info(pipelineCompletedLogMessageConstant, zap.String(pipelineLogFieldPipelineNameConstant, pipeline.name))
	return Outcome{Succeeded: true, Output: strings.Join(stepNotes, pipelineOutputJoinSeparatorConstant)}
}
