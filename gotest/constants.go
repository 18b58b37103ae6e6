package gotest

// Go toolchain invocation
const (
	DefaultGoBinary = "go"
	TestCommand     = "test"
	JSONFlag        = "-json"
	CountFlag       = "-count=1"
	TimeoutFlag     = "-timeout"
	RunFlag         = "-run"
)

// Actions reported by go test -json
const (
	ActionRun    = "run"
	ActionPass   = "pass"
	ActionFail   = "fail"
	ActionSkip   = "skip"
	ActionOutput = "output"
)
