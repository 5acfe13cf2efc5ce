package entities

import "fmt"

// ExecutionStatus is the lifecycle state of a task or resident plugin.
type ExecutionStatus uint32

const (
	StatusIdle      ExecutionStatus = 0
	StatusRunning   ExecutionStatus = 1
	StatusSuspended ExecutionStatus = 2
	StatusCompleted ExecutionStatus = 3
	StatusError     ExecutionStatus = 4
	StatusCancelled ExecutionStatus = 5
)

// AllStatuses lists every status in numeric order.
var AllStatuses = []ExecutionStatus{
	StatusIdle, StatusRunning, StatusSuspended, StatusCompleted, StatusError, StatusCancelled,
}

func (s ExecutionStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint32(s))
	}
}

// IsTerminal reports whether s ends a run.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// LogLevel is the severity a plugin passes to the host log service.
type LogLevel uint32

const (
	LogTrace LogLevel = 0
	LogDebug LogLevel = 1
	LogInfo  LogLevel = 2
	LogWarn  LogLevel = 3
	LogError LogLevel = 4
)

func (l LogLevel) String() string {
	switch l {
	case LogTrace:
		return "trace"
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarn:
		return "warn"
	case LogError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", uint32(l))
	}
}

// ParseLogLevel resolves a level name; unknown names map to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "trace":
		return LogTrace
	case "debug":
		return LogDebug
	case "warn", "warning":
		return LogWarn
	case "error":
		return LogError
	default:
		return LogInfo
	}
}

// StateScope selects which state namespace an operation addresses.
type StateScope uint32

const (
	// ScopeLocal is private to one plugin module.
	ScopeLocal StateScope = 0
	// ScopeHost is host-wide settings.
	ScopeHost StateScope = 1
	// ScopeShared is visible to every plugin.
	ScopeShared StateScope = 2
)

// AllScopes lists every scope.
var AllScopes = []StateScope{ScopeLocal, ScopeHost, ScopeShared}

func (s StateScope) String() string {
	switch s {
	case ScopeLocal:
		return "local"
	case ScopeHost:
		return "host"
	case ScopeShared:
		return "shared"
	default:
		return fmt.Sprintf("scope(%d)", uint32(s))
	}
}

// IsValid reports whether s is a known scope.
func (s StateScope) IsValid() bool { return s <= ScopeShared }

// ThreadRequirements is the scheduling bitset an instance publishes.
// UIThread is a hard constraint; the rest are hints.
type ThreadRequirements uint32

const (
	ThreadUI           ThreadRequirements = 1 << 0
	ThreadBackground   ThreadRequirements = 1 << 1
	ThreadHighPriority ThreadRequirements = 1 << 2
	ThreadLowPriority  ThreadRequirements = 1 << 3
)

// Has reports whether flag is set.
func (r ThreadRequirements) Has(flag ThreadRequirements) bool { return r&flag != 0 }

// Names returns the set flags by name.
func (r ThreadRequirements) Names() []string {
	names := []string{}
	for _, f := range []struct {
		flag ThreadRequirements
		name string
	}{
		{ThreadUI, "ui_thread"},
		{ThreadBackground, "background"},
		{ThreadHighPriority, "high_priority"},
		{ThreadLowPriority, "low_priority"},
	} {
		if r.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	return names
}

// TaskType classifies a task request. Values 100 and above are user-defined.
type TaskType uint32

const (
	TaskNone             TaskType = 0
	TaskGeneric          TaskType = 1
	TaskFileIO           TaskType = 2
	TaskDatabase         TaskType = 3
	TaskComputation      TaskType = 4
	TaskWindow           TaskType = 5
	TaskImage            TaskType = 6
	TaskAudio            TaskType = 7
	TaskVideo            TaskType = 8
	TaskHTTP             TaskType = 20
	TaskTCP              TaskType = 21
	TaskUDP              TaskType = 22
	TaskWebSocket        TaskType = 23
	TaskFileSharing      TaskType = 24
	TaskServiceDiscovery TaskType = 25
	TaskGRPC             TaskType = 26
	TaskMQTT             TaskType = 27
	TaskGraphQL          TaskType = 28

	TaskUserDefinedStart TaskType = 100
	TaskUserDefinedEnd   TaskType = 65535
)

var taskTypeNames = map[TaskType]string{
	TaskNone:             "none",
	TaskGeneric:          "generic",
	TaskFileIO:           "file_io",
	TaskDatabase:         "database",
	TaskComputation:      "computation",
	TaskWindow:           "window",
	TaskImage:            "image",
	TaskAudio:            "audio",
	TaskVideo:            "video",
	TaskHTTP:             "http",
	TaskTCP:              "tcp",
	TaskUDP:              "udp",
	TaskWebSocket:        "websocket",
	TaskFileSharing:      "file_sharing",
	TaskServiceDiscovery: "service_discovery",
	TaskGRPC:             "grpc",
	TaskMQTT:             "mqtt",
	TaskGraphQL:          "graphql",
}

// IsUserDefined reports whether t lies in the user-defined range.
func (t TaskType) IsUserDefined() bool {
	return t >= TaskUserDefinedStart && t <= TaskUserDefinedEnd
}

func (t TaskType) String() string {
	if name, ok := taskTypeNames[t]; ok {
		return name
	}
	if t.IsUserDefined() {
		return fmt.Sprintf("user(%d)", uint32(t))
	}
	return fmt.Sprintf("task(%d)", uint32(t))
}
