package functions

import "github.com/spayyavula/spark-ide-ai/events"

// Tool names understood by the dispatcher.
const (
	OpenApplication = "open_application"
	CreateFile      = "create_file"
	DeleteFile      = "delete_file"
	GetSystemInfo   = "get_system_info"
	SetReminder     = "set_reminder"
	ControlMedia    = "control_media"
	AdjustSettings  = "adjust_settings"
	SearchFiles     = "search_files"
	GetWeather      = "get_weather"
)

var (
	fileTypes   = []string{"file", "folder"}
	infoTypes   = []string{"time", "date", "battery", "memory", "cpu", "network", "all"}
	mediaAction = []string{"play", "pause", "stop", "next", "previous", "volume_up", "volume_down"}
	settings    = []string{"volume", "brightness", "wifi", "bluetooth", "dark_mode"}
)

func str(description string) events.Property {
	return events.Property{Type: "string", Description: description}
}

func enum(description string, values []string) events.Property {
	return events.Property{Type: "string", Description: description, Enum: values}
}

func function(name, description string, props map[string]events.Property, required ...string) events.Tool {
	return events.Tool{
		Type:        "function",
		Name:        name,
		Description: description,
		Parameters: events.Parameters{
			Type:       "object",
			Properties: props,
			Required:   required,
		},
	}
}

// Declarations returns the tool schema sent in session.update.
func Declarations() []events.Tool {
	return []events.Tool{
		function(OpenApplication, "Open an application or program", map[string]events.Property{
			"app_name":   str("Name of the application to open"),
			"parameters": str("Optional parameters for the application"),
		}, "app_name"),
		function(CreateFile, "Create a new file or folder", map[string]events.Property{
			"name":     str("Name of the file or folder"),
			"type":     enum("Type of item to create", fileTypes),
			"content":  str("Content for the file (if creating a file)"),
			"location": str("Where to create the item"),
		}, "name", "type"),
		function(DeleteFile, "Delete a file or folder", map[string]events.Property{
			"path":    str("Path to the file or folder to delete"),
			"confirm": {Type: "boolean", Description: "Confirmation to delete"},
		}, "path"),
		function(GetSystemInfo, "Get system information like time, date, battery, memory usage", map[string]events.Property{
			"info_type": enum("Type of system information to retrieve", infoTypes),
		}, "info_type"),
		function(SetReminder, "Set a reminder or alarm", map[string]events.Property{
			"title":       str("Title of the reminder"),
			"time":        str("When to remind (relative or absolute time)"),
			"description": str("Additional details"),
		}, "title", "time"),
		function(ControlMedia, "Control media playback", map[string]events.Property{
			"action": enum("Media control action", mediaAction),
			"media":  str("Specific media to play (optional)"),
		}, "action"),
		function(AdjustSettings, "Adjust system settings", map[string]events.Property{
			"setting": enum("Setting to adjust", settings),
			"value":   str("New value or action (on/off, increase/decrease, specific value)"),
		}, "setting", "value"),
		function(SearchFiles, "Search for files and folders", map[string]events.Property{
			"query":     str("Search query"),
			"location":  str("Where to search (optional)"),
			"file_type": str("File type filter (optional)"),
		}, "query"),
		function(GetWeather, "Get weather information", map[string]events.Property{
			"location": str("Location for weather info"),
		}, "location"),
	}
}
