package suitefile

// FileSpec is the top-level document of a suite file. The root context's hooks, tests, and
// child contexts are given at the top level.
type FileSpec struct {
	ID          string                 `yaml:"id"`
	Timeout     int                    `yaml:"timeout"`
	State       map[string]interface{} `yaml:"state"`
	ContextSpec `yaml:",inline"`
}

// ContextSpec describes one context.
type ContextSpec struct {
	Name       string        `yaml:"name"`
	Before     []StepSpec    `yaml:"before"`
	BeforeEach []StepSpec    `yaml:"beforeEach"`
	AfterEach  []StepSpec    `yaml:"afterEach"`
	After      []StepSpec    `yaml:"after"`
	Tests      []TestSpec    `yaml:"tests"`
	Contexts   []ContextSpec `yaml:"contexts"`
}

// TestSpec describes one test. Timeout is in milliseconds and covers all of its steps.
type TestSpec struct {
	Name    string     `yaml:"name"`
	Timeout int        `yaml:"timeout"`
	Steps   []StepSpec `yaml:"steps"`
}

// StepSpec is a single action. Exactly one of the action fields must be set. Timeout, in
// milliseconds, is only allowed for hook steps, since each hook step becomes its own hook.
type StepSpec struct {
	Timeout int                    `yaml:"timeout"`
	Set     map[string]interface{} `yaml:"set"`
	Compute map[string]string      `yaml:"compute"`
	Assert  string                 `yaml:"assert"`
	Run     string                 `yaml:"run"`
	Sleep   string                 `yaml:"sleep"`
	Fail    string                 `yaml:"fail"`
}

func (s StepSpec) actionCount() int {
	n := 0
	for _, present := range []bool{
		s.Set != nil, s.Compute != nil, s.Assert != "", s.Run != "", s.Sleep != "", s.Fail != "",
	} {
		if present {
			n++
		}
	}
	return n
}
