package plugin

// Stage is a position in the per-plugin version-control state machine.
type Stage int

// Version-control stages in workflow order.
const (
	StageUnforked Stage = iota
	StageForked
	StageCloned
	StageBranched
	StageCommitted
	StagePushed
	StagePullRequestOpened
)

var stageNames = map[Stage]string{
	StageUnforked:          "UNFORKED",
	StageForked:            "FORKED",
	StageCloned:            "CLONED",
	StageBranched:          "BRANCHED",
	StageCommitted:         "COMMITTED",
	StagePushed:            "PUSHED",
	StagePullRequestOpened: "PR_OPENED",
}

// String returns the upper-case stage label.
func (stage Stage) String() string {
	if name, known := stageNames[stage]; known {
		return name
	}
	return "UNKNOWN"
}

// BuildStep records build and transformation progress between BRANCHED and COMMITTED.
type BuildStep int

// Build steps in workflow order.
const (
	BuildStepNone BuildStep = iota
	BuildStepCleaned
	BuildStepCompiled
	BuildStepTransformed
	BuildStepVerified
)

var buildStepNames = map[BuildStep]string{
	BuildStepNone:        "NONE",
	BuildStepCleaned:     "CLEANED",
	BuildStepCompiled:    "COMPILED",
	BuildStepTransformed: "TRANSFORMED",
	BuildStepVerified:    "VERIFIED",
}

// String returns the upper-case build step label.
func (step BuildStep) String() string {
	if name, known := buildStepNames[step]; known {
		return name
	}
	return "UNKNOWN"
}
