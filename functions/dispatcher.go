package functions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// ActionError tags every failed call.
const ActionError = "error"

// FunctionCall is one tool invocation requested by the model.
type FunctionCall struct {
	Name      string
	CallID    string
	Arguments string // JSON object
}

// Result is what a tool call produced. It is sent upstream as the function
// output and broadcast to the client as a system action.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Action  string `json:"action"`
	Data    any    `json:"data"`
}

type OpenAppData struct {
	App    string `json:"app"`
	Params string `json:"params,omitempty"`
}

type CreateFileData struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Location string `json:"location,omitempty"`
}

type DeleteFileData struct {
	Path string `json:"path"`
}

type ReminderData struct {
	Title       string `json:"title"`
	Time        string `json:"time"`
	Description string `json:"description,omitempty"`
}

type MediaData struct {
	Action string `json:"action"`
	Media  string `json:"media,omitempty"`
}

type SettingsData struct {
	Setting string `json:"setting"`
	Value   string `json:"value"`
}

type SearchData struct {
	Query   string   `json:"query"`
	Results []string `json:"results"`
}

// Dependencies are the collaborators of a Dispatcher. Zero fields get defaults.
type Dependencies struct {
	Weather        WeatherProvider
	SystemInfo     SystemInfoProvider
	Clock          Clock
	Rand           RandomSource
	WeatherTimeout time.Duration
	Logger         *slog.Logger
}

// Dispatcher executes the locally simulated system actions.
type Dispatcher struct {
	weather        WeatherProvider
	fallback       WeatherProvider
	sysinfo        SystemInfoProvider
	clock          Clock
	rand           RandomSource
	weatherTimeout time.Duration
	logger         *slog.Logger
}

func NewDispatcher(deps Dependencies) *Dispatcher {
	if deps.Rand == nil {
		deps.Rand = DefaultRandom()
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.SystemInfo == nil {
		deps.SystemInfo = MockSystemInfo{Rand: deps.Rand}
	}
	if deps.WeatherTimeout <= 0 {
		deps.WeatherTimeout = 5 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Dispatcher{
		weather:        deps.Weather,
		fallback:       MockWeather{Rand: deps.Rand},
		sysinfo:        deps.SystemInfo,
		clock:          deps.Clock,
		rand:           deps.Rand,
		weatherTimeout: deps.WeatherTimeout,
		logger:         deps.Logger.With(slog.String("component", "dispatcher")),
	}
}

// Dispatch runs a tool call. It never panics and never returns an error:
// failures become a Result with Success false and Action "error".
func (d *Dispatcher) Dispatch(ctx context.Context, call FunctionCall) (res Result) {
	logger := d.logger.With(slog.String("function", call.Name), slog.String("call_id", call.CallID))
	logger.Info("🔧 function call", slog.String("arguments", call.Arguments))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("❌ function call panicked", slog.Any("panic", r))
			res = failure(fmt.Sprintf("Error executing %s: %v", call.Name, r))
		}
	}()

	args := call.Arguments
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}

	var err error
	switch call.Name {
	case OpenApplication:
		res, err = d.openApplication(args)
	case CreateFile:
		res, err = d.createFile(args)
	case DeleteFile:
		res, err = d.deleteFile(args)
	case GetSystemInfo:
		res, err = d.getSystemInfo(args)
	case SetReminder:
		res, err = d.setReminder(args)
	case ControlMedia:
		res, err = d.controlMedia(args)
	case AdjustSettings:
		res, err = d.adjustSettings(args)
	case SearchFiles:
		res, err = d.searchFiles(args)
	case GetWeather:
		res, err = d.getWeather(ctx, args)
	default:
		logger.Warn("⚠️ unknown function called")
		return failure("Unknown function: " + call.Name)
	}

	if err != nil {
		logger.Warn("⚠️ function call failed", slog.Any("err", err))
		return failure(fmt.Sprintf("Error executing %s: %v", call.Name, err))
	}
	return res
}

func failure(message string) Result {
	return Result{Success: false, Message: message, Action: ActionError, Data: nil}
}

func decode(args string, v any) error {
	if err := sonic.UnmarshalString(args, v); err != nil {
		return fmt.Errorf("malformed arguments: %w", err)
	}
	return nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required argument %q", name)
	}
	return nil
}

func oneOf(name, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("invalid %s %q: must be one of %s", name, value, strings.Join(allowed, ", "))
	}
	return nil
}

func (d *Dispatcher) openApplication(args string) (Result, error) {
	var a struct {
		AppName    text `json:"app_name"`
		Parameters text `json:"parameters"`
	}
	if err := decode(args, &a); err != nil {
		return Result{}, err
	}
	if err := required("app_name", string(a.AppName)); err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Opening %s", a.AppName),
		Action:  "open_app",
		Data:    OpenAppData{App: string(a.AppName), Params: string(a.Parameters)},
	}, nil
}

func (d *Dispatcher) createFile(args string) (Result, error) {
	var a struct {
		Name     text `json:"name"`
		Type     text `json:"type"`
		Content  text `json:"content"`
		Location text `json:"location"`
	}
	if err := decode(args, &a); err != nil {
		return Result{}, err
	}
	if err := required("name", string(a.Name)); err != nil {
		return Result{}, err
	}
	if err := oneOf("type", string(a.Type), fileTypes); err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Created %s %q successfully", a.Type, a.Name),
		Action:  "create_file",
		Data: CreateFileData{
			Name:     string(a.Name),
			Type:     string(a.Type),
			Content:  string(a.Content),
			Location: string(a.Location),
		},
	}, nil
}

func (d *Dispatcher) deleteFile(args string) (Result, error) {
	var a struct {
		Path    text  `json:"path"`
		Confirm *bool `json:"confirm"`
	}
	if err := decode(args, &a); err != nil {
		return Result{}, err
	}
	if err := required("path", string(a.Path)); err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Deleted %q successfully", a.Path),
		Action:  "delete_file",
		Data:    DeleteFileData{Path: string(a.Path)},
	}, nil
}

func (d *Dispatcher) getSystemInfo(args string) (Result, error) {
	var a struct {
		InfoType text `json:"info_type"`
	}
	if err := decode(args, &a); err != nil {
		return Result{}, err
	}
	infoType := string(a.InfoType)
	if err := oneOf("info_type", infoType, infoTypes); err != nil {
		return Result{}, err
	}

	now := d.clock.Now()
	lookups := map[string]func() string{
		"time":    func() string { return now.Format("3:04:05 PM") },
		"date":    func() string { return now.Format("1/2/2006") },
		"battery": d.sysinfo.Battery,
		"memory":  d.sysinfo.Memory,
		"cpu":     d.sysinfo.CPU,
		"network": d.sysinfo.Network,
	}

	info := make(map[string]string, len(lookups))
	if infoType == "all" {
		for key, lookup := range lookups {
			info[key] = lookup()
		}
	} else {
		info[infoType] = lookups[infoType]()
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("Here's your %s information", infoType),
		Action:  "system_info",
		Data:    info,
	}, nil
}

func (d *Dispatcher) setReminder(args string) (Result, error) {
	var a struct {
		Title       text `json:"title"`
		Time        text `json:"time"`
		Description text `json:"description"`
	}
	if err := decode(args, &a); err != nil {
		return Result{}, err
	}
	if err := required("title", string(a.Title)); err != nil {
		return Result{}, err
	}
	if err := required("time", string(a.Time)); err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Reminder %q set for %s", a.Title, a.Time),
		Action:  "set_reminder",
		Data: ReminderData{
			Title:       string(a.Title),
			Time:        string(a.Time),
			Description: string(a.Description),
		},
	}, nil
}

func (d *Dispatcher) controlMedia(args string) (Result, error) {
	var a struct {
		Action text `json:"action"`
		Media  text `json:"media"`
	}
	if err := decode(args, &a); err != nil {
		return Result{}, err
	}
	if err := oneOf("action", string(a.Action), mediaAction); err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Media %s executed", a.Action),
		Action:  "control_media",
		Data:    MediaData{Action: string(a.Action), Media: string(a.Media)},
	}, nil
}

func (d *Dispatcher) adjustSettings(args string) (Result, error) {
	var a struct {
		Setting text `json:"setting"`
		Value   text `json:"value"`
	}
	if err := decode(args, &a); err != nil {
		return Result{}, err
	}
	if err := oneOf("setting", string(a.Setting), settings); err != nil {
		return Result{}, err
	}
	if err := required("value", string(a.Value)); err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("%s adjusted to %s", a.Setting, a.Value),
		Action:  "adjust_settings",
		Data:    SettingsData{Setting: string(a.Setting), Value: string(a.Value)},
	}, nil
}

func (d *Dispatcher) searchFiles(args string) (Result, error) {
	var a struct {
		Query    text `json:"query"`
		Location text `json:"location"`
		FileType text `json:"file_type"`
	}
	if err := decode(args, &a); err != nil {
		return Result{}, err
	}
	if err := required("query", string(a.Query)); err != nil {
		return Result{}, err
	}
	query := string(a.Query)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Found files matching %q", query),
		Action:  "search_files",
		Data:    SearchData{Query: query, Results: searchResults(query, string(a.FileType), d.rand)},
	}, nil
}

func (d *Dispatcher) getWeather(ctx context.Context, args string) (Result, error) {
	var a struct {
		Location text `json:"location"`
	}
	if err := decode(args, &a); err != nil {
		return Result{}, err
	}
	location := string(a.Location)
	if err := required("location", location); err != nil {
		return Result{}, err
	}

	weather, err := d.lookupWeather(ctx, location)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Here's the weather for %s", location),
		Action:  "get_weather",
		Data:    weather,
	}, nil
}

// lookupWeather asks the live provider first and synthesizes the same shape
// when it is missing or fails.
func (d *Dispatcher) lookupWeather(ctx context.Context, location string) (Weather, error) {
	if d.weather != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, d.weatherTimeout)
		defer cancel()

		w, err := d.weather.Weather(lookupCtx, location)
		if err == nil {
			return w, nil
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return Weather{}, ctx.Err()
		}
		d.logger.Warn("⚠️ weather provider unavailable, using synthesized conditions",
			slog.String("location", location), slog.Any("err", err))
	}
	return d.fallback.Weather(ctx, location)
}
