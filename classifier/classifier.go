package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cschleiden/go-approvals/core"
	"github.com/cschleiden/go-approvals/internal/metrickeys"
	mi "github.com/cschleiden/go-approvals/internal/metrics"
	"github.com/cschleiden/go-approvals/llm"
	"github.com/cschleiden/go-approvals/log"
	"github.com/cschleiden/go-approvals/metrics"
	"github.com/kaptinlin/jsonrepair"
)

const FallbackReason = "could not parse, requires human judgment"

// Result is the outcome of classifying a request.
type Result struct {
	Analysis         string
	Plan             *core.ActionPlan
	RiskLevel        core.RiskLevel
	RequiresApproval bool

	// Fallback is set when the model output could not be understood and the conservative plan was used.
	Fallback bool
}

type Options struct {
	Logger  *slog.Logger
	Metrics metrics.Client

	// Temperature used for classification. Kept low for decisions.
	Temperature float64
}

var DefaultOptions = Options{
	Temperature: 0.3,
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithMetrics(client metrics.Client) Option {
	return func(o *Options) {
		o.Metrics = client
	}
}

func WithTemperature(t float64) Option {
	return func(o *Options) {
		o.Temperature = t
	}
}

type Classifier struct {
	model   llm.Model
	options Options
}

func New(model llm.Model, opts ...Option) *Classifier {
	options := DefaultOptions
	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	if options.Metrics == nil {
		options.Metrics = mi.NewNoopMetricsClient()
	}

	return &Classifier{
		model:   model,
		options: options,
	}
}

// Classify turns free text into an action plan and a risk level. Output the model produces that
// cannot be understood never fails the call: a conservative plan that requires approval is returned
// instead. Only errors calling the model are returned.
func (c *Classifier) Classify(ctx context.Context, userInput string) (*Result, error) {
	text, err := c.model.Generate(ctx, &llm.Request{
		System:      systemPrompt,
		Prompt:      fmt.Sprintf(analysisPrompt, userInput),
		Temperature: c.options.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("classifying request: %w", err)
	}

	r, err := Parse(text, userInput)
	if err != nil {
		c.options.Logger.WarnContext(ctx, "could not parse classification, requiring approval", "error", err)
		c.options.Metrics.Counter(metrickeys.ClassifierFallback, metrics.Tags{}, 1)

		return Fallback(text, userInput), nil
	}

	if r.Fallback {
		c.options.Logger.WarnContext(ctx, "classification was malformed and repaired, requiring approval")
		c.options.Metrics.Counter(metrickeys.ClassifierFallback, metrics.Tags{}, 1)
	}

	c.options.Logger.DebugContext(ctx, "classified request",
		log.ActionTypeKey, r.Plan.ActionType,
		log.RiskLevelKey, string(r.RiskLevel),
		log.RequiresApprovalKey, r.RequiresApproval,
	)

	return r, nil
}

// Fallback returns the conservative plan used when classification fails.
func Fallback(rawText, userInput string) *Result {
	return &Result{
		Analysis: rawText,
		Plan: &core.ActionPlan{
			ActionType:  core.ActionTypeUnknown,
			Description: userInput,
			RiskLevel:   core.RiskHigh,
			Parameters:  core.Parameters{},
			Reason:      FallbackReason,
		},
		RiskLevel:        core.RiskHigh,
		RequiresApproval: true,
		Fallback:         true,
	}
}

type output struct {
	Analysis         string          `json:"analysis"`
	ActionType       string          `json:"action_type"`
	Description      string          `json:"description"`
	RiskLevel        string          `json:"risk_level"`
	Parameters       json.RawMessage `json:"parameters"`
	Reason           string          `json:"reason"`
	RequiresApproval *bool           `json:"requires_approval"`
}

var ErrInvalidRiskLevel = errors.New("missing or unknown risk level")

// Parse parses model output into a result. Markdown code fences are stripped. Malformed JSON is
// repaired to recover the analysis and the plan, but a repaired result never keeps the risk level the
// model claimed: it is raised to at least high and requires approval.
func Parse(text, userInput string) (*Result, error) {
	text = stripCodeFence(text)

	var out output
	repaired := false
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		fixed, rerr := jsonrepair.JSONRepair(text)
		if rerr != nil {
			return nil, fmt.Errorf("parsing classification: %w", err)
		}

		out = output{}
		if err := json.Unmarshal([]byte(fixed), &out); err != nil {
			return nil, fmt.Errorf("parsing repaired classification: %w", err)
		}

		repaired = true
	}

	risk, ok := core.ParseRiskLevel(out.RiskLevel)
	if !ok && !repaired {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRiskLevel, out.RiskLevel)
	}

	actionType := strings.TrimSpace(out.ActionType)
	if actionType == "" {
		actionType = core.ActionTypeUnknown
	}

	description := strings.TrimSpace(out.Description)
	if description == "" {
		description = userInput
	}

	requiresApproval := true
	if out.RequiresApproval != nil {
		requiresApproval = *out.RequiresApproval
	}

	reason := out.Reason

	if repaired {
		if risk != core.RiskCritical {
			risk = core.RiskHigh
		}

		requiresApproval = true
		reason = FallbackReason
	}

	return &Result{
		Analysis: out.Analysis,
		Plan: &core.ActionPlan{
			ActionType:  actionType,
			Description: description,
			RiskLevel:   risk,
			Parameters:  parseParameters(out.Parameters),
			Reason:      reason,
		},
		RiskLevel:        risk,
		RequiresApproval: requiresApproval,
		Fallback:         repaired,
	}, nil
}

// parseParameters accepts any JSON value. Non-object values are kept under a single "value" key.
func parseParameters(raw json.RawMessage) core.Parameters {
	params := core.Parameters{}
	if len(raw) == 0 {
		return params
	}

	if err := json.Unmarshal(raw, &params); err == nil {
		if params == nil {
			return core.Parameters{}
		}

		return params
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return core.Parameters{}
	}

	return core.Parameters{{Key: "value", Value: v}}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	lines := strings.Split(s, "\n")[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
