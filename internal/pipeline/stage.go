// Package pipeline sequences the per-request stages (classify, dispatch,
// assemble, format, send) and the startup stages (discover, load,
// synthesize, ready).
package pipeline

// Stage is one step of request processing. Stages run strictly in the order
// declared; Recover is entered from any stage that fails.
type Stage int

const (
	StageClassify Stage = iota
	StageDispatch
	StageBuild
	StageEnumerate
	StageAnnotate
	StageFormat
	StageHeaders
	StageSend
	StageRecover
	StageDone
)

var stageNames = [...]string{
	StageClassify:  "classify",
	StageDispatch:  "dispatch",
	StageBuild:     "build",
	StageEnumerate: "enumerate",
	StageAnnotate:  "annotate",
	StageFormat:    "format",
	StageHeaders:   "headers",
	StageSend:      "send",
	StageRecover:   "recover",
	StageDone:      "done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// BootStage is one step of startup.
type BootStage int

const (
	BootDiscover BootStage = iota
	BootLoad
	BootSynthesize
	BootReady
)

func (s BootStage) String() string {
	switch s {
	case BootDiscover:
		return "discover"
	case BootLoad:
		return "load"
	case BootSynthesize:
		return "synthesize"
	case BootReady:
		return "ready"
	}
	return "unknown"
}
