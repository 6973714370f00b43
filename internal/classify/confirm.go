package classify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/llm"
	"github.com/jonathan/research-scout/internal/pacing"
	"github.com/jonathan/research-scout/internal/prompts"
	"github.com/jonathan/research-scout/internal/types"
)

const (
	// DefaultConfirmTimeout bounds one confirmation request.
	DefaultConfirmTimeout = 60 * time.Second
	// DefaultConfirmDelay follows every confirmation call.
	DefaultConfirmDelay = 3 * time.Second
	// UnavailableMarker prefixes the rationale of verdicts produced without a usable answer.
	UnavailableMarker = "[UNAVAILABLE]"
	// DefaultRules is used when no rules file exists.
	DefaultRules = "Evaluate this document for relevance."
)

// Confirmer is the authoritative second-opinion stage. It never fails: any
// problem degrades to LOW with UnavailableMarker in the rationale.
type Confirmer struct {
	client  llm.Client
	rules   string
	timeout time.Duration
	delay   time.Duration
	sleep   pacing.SleepFunc
	logger  *zap.Logger
}

// ConfirmerOptions configures a Confirmer.
type ConfirmerOptions struct {
	Rules   string
	Timeout time.Duration
	Delay   time.Duration
	Sleep   pacing.SleepFunc
}

// NewConfirmer wraps client's standard tier.
func NewConfirmer(client llm.Client, opts ConfirmerOptions, logger *zap.Logger) *Confirmer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultConfirmTimeout
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.Sleep == nil {
		opts.Sleep = pacing.Sleep
	}
	if strings.TrimSpace(opts.Rules) == "" {
		opts.Rules = DefaultRules
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Confirmer{
		client:  client,
		rules:   opts.Rules,
		timeout: opts.Timeout,
		delay:   opts.Delay,
		sleep:   opts.Sleep,
		logger:  logger,
	}
}

// LoadRules reads the project rules file, falling back to DefaultRules.
func LoadRules(path string) string {
	data, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(data)) == "" {
		return DefaultRules
	}
	return string(data)
}

// Confirm classifies one item and then waits the configured delay.
func (c *Confirmer) Confirm(ctx context.Context, title, content string) types.Verdict {
	v := c.confirm(ctx, title, content)
	// the delay is a pacing device; cancellation just cuts it short
	_ = c.sleep(ctx, c.delay)
	return v
}

func (c *Confirmer) confirm(ctx context.Context, title, content string) types.Verdict {
	if c.client == nil {
		return unavailable(&UnavailableError{Message: "no confirmation classifier configured"})
	}

	prompt := prompts.Format(prompts.MustGet(prompts.TriageFile, prompts.KeyConfirm), map[string]string{
		"Rules":   c.rules,
		"Title":   title,
		"Content": content,
	})

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.GenerateContent(callCtx, prompt, llm.TierStandard)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = &UnavailableError{Message: "confirmation timed out", Cause: err}
		} else {
			err = &UnavailableError{Message: "confirmation request failed", Cause: err}
		}
		c.logger.Warn("confirmation classifier unavailable", zap.String("title", title), zap.Error(err))
		return unavailable(err)
	}

	v, err := ParseConfirmation(raw)
	if err != nil {
		c.logger.Warn("confirmation response unparseable", zap.String("title", title), zap.Error(err))
		return unavailable(err)
	}
	return v
}

func unavailable(err error) types.Verdict {
	return types.Verdict{
		Relevance: types.RelevanceLow,
		Rationale: fmt.Sprintf("%s Confirmation classifier unavailable: %v", UnavailableMarker, err),
		Stage:     types.StageConfirm,
	}
}

// ParseConfirmation maps the first token of the first non-empty line:
// YES to HIGH, NO to LOW, SKIP or IGNORE to IGNORE.
func ParseConfirmation(raw string) (types.Verdict, error) {
	cleaned := llm.StripThinking(raw)

	var first string
	rest := cleaned
	for rest != "" {
		line, after, _ := strings.Cut(rest, "\n")
		rest = after
		if strings.TrimSpace(line) != "" {
			first = strings.TrimSpace(line)
			break
		}
	}
	if first == "" {
		return types.Verdict{}, &MalformedResponseError{Message: "empty confirmation response", Raw: truncate(raw, 200)}
	}

	bare := strings.TrimLeft(first, "*#_`\"'> ")
	word := leadingLetters(bare)

	var rel types.Relevance
	switch strings.ToUpper(word) {
	case "YES":
		rel = types.RelevanceHigh
	case "NO":
		rel = types.RelevanceLow
	case "SKIP", "IGNORE":
		rel = types.RelevanceIgnore
	default:
		return types.Verdict{}, &MalformedResponseError{Message: fmt.Sprintf("unexpected answer %q", truncate(first, 40)), Raw: truncate(raw, 200)}
	}

	rationale := strings.TrimSpace(rest)
	if rationale == "" {
		rationale = strings.TrimSpace(strings.TrimLeft(bare[len(word):], " .,:;!-*_`\"'"))
	}
	if rationale == "" {
		rationale = first
	}
	return types.Verdict{Relevance: rel, Rationale: rationale, Stage: types.StageConfirm}, nil
}

func leadingLetters(s string) string {
	for i, r := range s {
		if !unicode.IsLetter(r) {
			return s[:i]
		}
	}
	return s
}
