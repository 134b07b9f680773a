package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/listsync/internal/apperr"
	"github.com/roach88/listsync/internal/testutil"
)

// Scenario is a scripted session against one resource kind.
// Steps run in order against a fake remote store; each op step waits for
// its outcome before the next step starts.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Kind is the resource kind the engine manages (e.g. "contacts").
	Kind string `yaml:"kind"`

	// Kinds optionally points at a CUE file defining Kind. Relative paths
	// resolve against the scenario file. Empty means the built-in kinds.
	Kinds string `yaml:"kinds,omitempty"`

	// Token is the session token at start. Empty means logged out.
	Token string `yaml:"token,omitempty"`

	// RequireToken makes the fake remote reject mutations that do not
	// carry this token.
	RequireToken string `yaml:"require_token,omitempty"`

	// Seed is the remote collection before the initial load. Records get
	// ids "1", "2", ... in order.
	Seed []map[string]any `yaml:"seed"`

	Steps []Step `yaml:"steps"`

	// Assertions validate the final list, notification and remote calls.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one user action or environment event.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Key selects a local record by its unique field (case-insensitive).
	Key string `yaml:"key,omitempty"`

	// ID selects a record by server id. Used when Key is empty.
	ID string `yaml:"id,omitempty"`

	// Fields is the submitted record for create and update.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Method, Status and Message configure fail_next.
	Method  string `yaml:"method,omitempty"`
	Status  int    `yaml:"status,omitempty"`
	Message string `yaml:"message,omitempty"`

	// Token is the token set by login.
	Token string `yaml:"token,omitempty"`

	// Duration is how far advance moves the notification clock.
	Duration time.Duration `yaml:"duration,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks the outcome of a single step.
type Expect struct {
	// Code is the expected error code, or "OK" for success.
	Code string `yaml:"code,omitempty"`

	// Notice is the expected notification text after the step. Use
	// NoNotice to expect that none is showing.
	Notice   string `yaml:"notice,omitempty"`
	NoNotice bool   `yaml:"no_notice,omitempty"`

	// Record is a subset match on the op's resulting record.
	Record map[string]any `yaml:"record,omitempty"`
}

// Step actions.
const (
	ActionLoad         = "load"
	ActionCreate       = "create"
	ActionResolve      = "resolve"
	ActionUpdate       = "update"
	ActionRemove       = "remove"
	ActionLike         = "like"
	ActionDeleteRemote = "delete_remote"
	ActionFailNext     = "fail_next"
	ActionLogin        = "login"
	ActionLogout       = "logout"
	ActionAdvance      = "advance"
)

// CodeOK is Expect.Code for a successful step.
const CodeOK = "OK"

// Assertion validates the state after all steps.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Records is the expected local list, in order (list). Each entry is
	// a subset match on that record's fields.
	Records []map[string]any `yaml:"records,omitempty"`

	// Text is the expected current notification (notification).
	// Empty expects no notification.
	Text string `yaml:"text,omitempty"`

	// Method and Count are used by remote_calls; Kind and Count by
	// notice_count.
	Method string `yaml:"method,omitempty"`
	Kind   string `yaml:"kind,omitempty"`
	Count  int    `yaml:"count"`
}

// Assertion types.
const (
	AssertList         = "list"
	AssertRemote       = "remote"
	AssertNotification = "notification"
	AssertRemoteCalls  = "remote_calls"
	AssertNoticeCount  = "notice_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so a typo cannot silently skip a check.
// A relative Kinds path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Kinds != "" && !filepath.IsAbs(s.Kinds) {
		s.Kinds = filepath.Join(filepath.Dir(path), s.Kinds)
	}
	return s, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Action {
	case ActionLoad, ActionResolve, ActionLogout:
	case ActionCreate:
		if step.Fields == nil {
			return fmt.Errorf("create needs fields")
		}
	case ActionUpdate:
		if step.Fields == nil {
			return fmt.Errorf("update needs fields")
		}
		if step.Key == "" && step.ID == "" {
			return fmt.Errorf("update needs key or id")
		}
	case ActionRemove, ActionLike, ActionDeleteRemote:
		if step.Key == "" && step.ID == "" {
			return fmt.Errorf("%s needs key or id", step.Action)
		}
	case ActionFailNext:
		switch step.Method {
		case testutil.MethodList, testutil.MethodCreate, testutil.MethodUpdate, testutil.MethodDelete:
		default:
			return fmt.Errorf("fail_next: unknown method %q", step.Method)
		}
		if step.Status == 0 {
			return fmt.Errorf("fail_next needs status")
		}
	case ActionLogin:
		if step.Token == "" {
			return fmt.Errorf("login needs token")
		}
	case ActionAdvance:
		if step.Duration <= 0 {
			return fmt.Errorf("advance needs a positive duration")
		}
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}

	if step.Expect != nil && step.Expect.Code != "" && step.Expect.Code != CodeOK {
		if !knownCode(step.Expect.Code) {
			return fmt.Errorf("expect: unknown code %q", step.Expect.Code)
		}
	}
	return nil
}

func knownCode(code string) bool {
	switch apperr.Code(strings.ToUpper(code)) {
	case apperr.CodeValidation, apperr.CodeConflict, apperr.CodeStale, apperr.CodeAuthFailed, apperr.CodeTransport:
		return true
	}
	return false
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertList, AssertRemote, AssertNotification:
	case AssertRemoteCalls:
		if a.Method == "" {
			return fmt.Errorf("remote_calls needs method")
		}
	case AssertNoticeCount:
		if a.Kind == "" {
			return fmt.Errorf("notice_count needs kind")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("count must be non-negative")
	}
	return nil
}
