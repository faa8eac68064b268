package tools

import (
	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-realtime/core/events"
)

const (
	ToolStartRecording  = "startRecording"
	ToolSaveStudentName = "saveStudentName"
	ToolStopRecording   = "stopRecording"
)

type StartRecordingArguments struct {
	RecordingType string `json:"recordingType,omitempty" jsonschema:"enum=audio,enum=video" jsonschema_description:"Whether to capture audio only or video"`
	Purpose       string `json:"purpose,omitempty" jsonschema_description:"What the recording is for, such as Daily Reflection"`
	Description   string `json:"description,omitempty" jsonschema_description:"Short description saved with the recording"`
}

type SaveStudentNameArguments struct {
	Name string `json:"name" jsonschema_description:"The student's name as they said it"`
}

type StopRecordingArguments struct{}

// Definitions returns the recording tools advertised to the model.
func Definitions() []events.ToolDefinition {
	return []events.ToolDefinition{
		NewDefinition(ToolStartRecording, "Start recording the student. Interrupts any speech first.", StartRecordingArguments{}),
		NewDefinition(ToolSaveStudentName, "Save the student's name once they introduce themselves.", SaveStudentNameArguments{}),
		NewDefinition(ToolStopRecording, "Stop the current recording and save it.", StopRecordingArguments{}),
	}
}

// NewDefinition builds a function tool whose parameters are reflected from
// the arguments struct.
func NewDefinition(name, description string, arguments any) events.ToolDefinition {
	reflector := jsonschema.Reflector{DoNotReference: true, Anonymous: true}
	schema := reflector.Reflect(arguments)
	schema.Version = ""

	return events.ToolDefinition{
		Type:        "function",
		Name:        name,
		Description: description,
		Parameters:  schema,
	}
}
