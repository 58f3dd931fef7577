package voice

import (
	"regexp"
	"strconv"
	"strings"
)

// CommandType classifies a finalized utterance.
type CommandType string

// CommandType enum values.
const (
	CommandTimer      CommandType = "timer"
	CommandNavigation CommandType = "navigation"
	CommandScaling    CommandType = "scaling"
	CommandQuery      CommandType = "query"
)

// TimerAction is the requested timer operation.
type TimerAction string

// TimerAction enum values.
const (
	TimerStart TimerAction = "start"
	TimerStop  TimerAction = "stop"
)

// NavAction is the requested step movement.
type NavAction string

// NavAction enum values.
const (
	NavNext     NavAction = "next"
	NavPrevious NavAction = "previous"
	NavGoTo     NavAction = "goto"
	NavRepeat   NavAction = "repeat"
)

// Command is the parsed form of one utterance. Exactly one of the
// per-type records is populated, matching Type. Confidence is advisory:
// a pattern match always wins over the score, and anything the parser
// cannot classify degrades to a query instead of failing.
type Command struct {
	Type       CommandType        `json:"type"`
	Raw        string             `json:"raw"`
	Confidence float64            `json:"confidence"`
	Timer      *TimerCommand      `json:"timer,omitempty"`
	Navigation *NavigationCommand `json:"navigation,omitempty"`
	Scaling    *ScalingCommand    `json:"scaling,omitempty"`
	Query      string             `json:"query,omitempty"`
}

// TimerCommand carries timer parameters.
type TimerCommand struct {
	Action          TimerAction `json:"action"`
	DurationSeconds int         `json:"duration_seconds,omitempty"`
	Label           string      `json:"label,omitempty"`
}

// NavigationCommand carries step navigation parameters. TargetStep is the
// zero-based step index and is set only for the goto action; spoken step
// numbers are one-based ("step 3" targets index 2).
type NavigationCommand struct {
	Action     NavAction `json:"action"`
	TargetStep int       `json:"target_step,omitempty"`
}

// ScalingCommand carries scaling parameters. Either Multiplier or
// TargetServings is set, never both.
type ScalingCommand struct {
	Multiplier     float64 `json:"multiplier,omitempty"`
	TargetServings int     `json:"target_servings,omitempty"`
}

const (
	matchedConfidence = 0.9
	queryConfidence   = 0.3
)

var (
	timerStopRe  = regexp.MustCompile(`\b(stop|cancel|kill|end)\b.*\btimer\b|\btimer\b.*\b(off|stop)\b`)
	timerStartRe = regexp.MustCompile(`\b(set|start|create|begin|put)\b.*\b(timer|alarm)\b|\b(timer|alarm)\s+for\b`)

	gotoStepRe  = regexp.MustCompile(`\b(?:go|jump|skip)\s+(?:back\s+)?to\s+step\b|\bstep\s+(?:number\s+)?(\d+|[a-z]+)\b`)
	nextStepRe  = regexp.MustCompile(`\bnext\b|\bcontinue\b|\bmove\s+on\b|\bwhat(?:'s| is)\s+next\b`)
	prevStepRe  = regexp.MustCompile(`\b(previous|last|back)\b`)
	repeatRe    = regexp.MustCompile(`\b(repeat|again|one more time)\b`)
	stepWordRe  = regexp.MustCompile(`\bstep\b|\binstruction\b|\bdirection\b`)

	servingsRe   = regexp.MustCompile(`\b(?:for|feed|serve|make it for|scale (?:it )?(?:to|for))\s+(\d+|[a-z]+)\s*(?:people|persons|servings|guests)?\b`)
	multiplierRe = regexp.MustCompile(`\b(double|triple|quadruple|halve|half)\b`)
	scaleWordRe  = regexp.MustCompile(`\b(recipe|batch|servings?|portions?|ingredients?|scale)\b`)

	durationRe = regexp.MustCompile(`(\d+(?:\.\d+)?|[a-z]+(?:[ -][a-z]+)?)\s*(hours?|hrs?|minutes?|mins?|seconds?|secs?)\b`)
	numberRe   = regexp.MustCompile(`\b(\d+)\b`)
)

// numberWords maps spoken numbers the recognizer commonly emits as words.
var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11,
	"twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15, "sixteen": 16,
	"seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
	"twenty five": 25, "twenty-five": 25, "thirty": 30, "forty": 40,
	"forty five": 45, "forty-five": 45, "fifty": 50, "sixty": 60,
	"ninety": 90, "half": 0,
}

// Parse classifies finalized recognized text into exactly one command.
// Classification is fixed-vocabulary pattern matching; ambiguous or
// unparseable input becomes a query for the dialogue backend to resolve
// rather than an error.
func Parse(text string) Command {
	raw := strings.TrimSpace(text)
	norm := strings.ToLower(raw)
	norm = strings.Trim(norm, ".!?")

	if norm == "" {
		return Command{Type: CommandQuery, Raw: raw, Query: raw, Confidence: queryConfidence}
	}

	if cmd, ok := parseTimer(norm, raw); ok {
		return cmd
	}
	if cmd, ok := parseScaling(norm, raw); ok {
		return cmd
	}
	if cmd, ok := parseNavigation(norm, raw); ok {
		return cmd
	}

	return Command{Type: CommandQuery, Raw: raw, Query: raw, Confidence: queryConfidence}
}

func parseTimer(norm, raw string) (Command, bool) {
	if timerStopRe.MatchString(norm) {
		return Command{
			Type:       CommandTimer,
			Raw:        raw,
			Confidence: matchedConfidence,
			Timer:      &TimerCommand{Action: TimerStop},
		}, true
	}

	if !timerStartRe.MatchString(norm) {
		return Command{}, false
	}

	seconds, ok := ParseDurationPhrase(norm)
	if !ok || seconds <= 0 {
		// A timer verb with no parseable duration is ambiguous; let the
		// assistant ask the follow-up instead of guessing.
		return Command{}, false
	}

	return Command{
		Type:       CommandTimer,
		Raw:        raw,
		Confidence: matchedConfidence,
		Timer:      &TimerCommand{Action: TimerStart, DurationSeconds: seconds},
	}, true
}

func parseNavigation(norm, raw string) (Command, bool) {
	if m := gotoStepRe.FindStringSubmatch(norm); m != nil {
		if step, ok := ParseStepNumber(norm); ok {
			return Command{
				Type:       CommandNavigation,
				Raw:        raw,
				Confidence: matchedConfidence,
				Navigation: &NavigationCommand{Action: NavGoTo, TargetStep: step},
			}, true
		}
	}

	if repeatRe.MatchString(norm) && (stepWordRe.MatchString(norm) || wordCount(norm) <= 3) {
		return Command{
			Type:       CommandNavigation,
			Raw:        raw,
			Confidence: matchedConfidence,
			Navigation: &NavigationCommand{Action: NavRepeat},
		}, true
	}

	if nextStepRe.MatchString(norm) && (stepWordRe.MatchString(norm) || wordCount(norm) <= 3) {
		return Command{
			Type:       CommandNavigation,
			Raw:        raw,
			Confidence: matchedConfidence,
			Navigation: &NavigationCommand{Action: NavNext},
		}, true
	}

	if prevStepRe.MatchString(norm) && (stepWordRe.MatchString(norm) || wordCount(norm) <= 3) {
		return Command{
			Type:       CommandNavigation,
			Raw:        raw,
			Confidence: matchedConfidence,
			Navigation: &NavigationCommand{Action: NavPrevious},
		}, true
	}

	return Command{}, false
}

func parseScaling(norm, raw string) (Command, bool) {
	if m := multiplierRe.FindStringSubmatch(norm); m != nil && scaleWordRe.MatchString(norm) {
		var mult float64
		switch m[1] {
		case "double":
			mult = 2
		case "triple":
			mult = 3
		case "quadruple":
			mult = 4
		case "halve", "half":
			mult = 0.5
		}
		return Command{
			Type:       CommandScaling,
			Raw:        raw,
			Confidence: matchedConfidence,
			Scaling:    &ScalingCommand{Multiplier: mult},
		}, true
	}

	if m := servingsRe.FindStringSubmatch(norm); m != nil && scaleWordRe.MatchString(norm) {
		if n, ok := parseNumberToken(m[1]); ok && n > 0 {
			return Command{
				Type:       CommandScaling,
				Raw:        raw,
				Confidence: matchedConfidence,
				Scaling:    &ScalingCommand{TargetServings: n},
			}, true
		}
	}

	return Command{}, false
}

// ParseDurationPhrase extracts a duration in seconds from text like
// "10 minutes", "an hour and a half", or "1 hour 20 minutes". Multiple
// units are summed. These are the same rules the typed timer input uses,
// so spoken and typed durations parse identically.
func ParseDurationPhrase(text string) (int, bool) {
	norm := strings.ToLower(text)
	total := 0
	found := false

	for _, m := range durationRe.FindAllStringSubmatch(norm, -1) {
		amount, ok := parseAmountToken(m[1])
		if !ok {
			continue
		}
		unit := m[2]
		switch {
		case strings.HasPrefix(unit, "hour"), strings.HasPrefix(unit, "hr"):
			total += int(amount * 3600)
		case strings.HasPrefix(unit, "min"):
			total += int(amount * 60)
		case strings.HasPrefix(unit, "sec"):
			total += int(amount)
		}
		found = true
	}

	// "an hour and a half", "a minute and a half"
	if found && strings.Contains(norm, "and a half") {
		switch {
		case strings.Contains(norm, "hour"):
			total += 1800
		case strings.Contains(norm, "minute") || strings.Contains(norm, "min"):
			total += 30
		}
	}
	// "half an hour" with no leading number
	if !found && strings.Contains(norm, "half an hour") {
		return 1800, true
	}

	if !found || total <= 0 {
		return 0, false
	}
	return total, true
}

// ParseStepNumber extracts a zero-based step index from text like
// "step 3" or "go to step five". Returns false when no one-based step
// number is present.
func ParseStepNumber(text string) (int, bool) {
	norm := strings.ToLower(text)
	idx := strings.Index(norm, "step")
	if idx < 0 {
		return 0, false
	}

	rest := norm[idx+len("step"):]
	rest = strings.TrimPrefix(strings.TrimSpace(rest), "number ")

	if m := numberRe.FindStringSubmatch(rest); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 {
			return n - 1, true
		}
	}

	for _, word := range strings.Fields(rest) {
		if n, ok := numberWords[word]; ok && n >= 1 {
			return n - 1, true
		}
	}

	return 0, false
}

func parseNumberToken(token string) (int, bool) {
	if n, err := strconv.Atoi(token); err == nil {
		return n, true
	}
	if n, ok := numberWords[token]; ok {
		return n, true
	}
	return 0, false
}

func parseAmountToken(token string) (float64, bool) {
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f, true
	}
	if token == "half" {
		return 0.5, true
	}
	if n, ok := numberWords[token]; ok && n > 0 {
		return float64(n), true
	}
	return 0, false
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
