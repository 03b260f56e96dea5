// Command dispatch runs one tool call through the local dispatcher and
// prints the result the relay would send upstream.
//
//	dispatch --name adjust_settings --args '{"setting":"volume","value":"up"}'
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/spayyavula/spark-ide-ai/functions"
	"github.com/spayyavula/spark-ide-ai/logging"
)

func main() {
	flagSet := pflag.NewFlagSet("dispatch", pflag.ContinueOnError)
	name := flagSet.StringP("name", "n", functions.GetSystemInfo, "tool name")
	args := flagSet.StringP("args", "a", "{}", "JSON arguments")
	list := flagSet.Bool("list", false, "print the tool declarations and exit")
	model := flagSet.String("weather-model", "gemini-2.5-flash", "model used for live weather when GEMINI_API_KEY is set")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Invalid flags: %v", err)
	}

	_ = godotenv.Load()

	if *list {
		out, err := sonic.ConfigStd.MarshalIndent(functions.Declarations(), "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode declarations: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deps := functions.Dependencies{Logger: logging.New(logging.Options{})}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		weather, err := functions.NewGeminiWeather(ctx, apiKey, *model)
		if err != nil {
			log.Fatalf("Failed to create weather provider: %v", err)
		}
		deps.Weather = weather
	}

	result := functions.NewDispatcher(deps).Dispatch(ctx, functions.FunctionCall{
		Name:      *name,
		CallID:    "call_local",
		Arguments: *args,
	})

	out, err := sonic.ConfigStd.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(out))
	if !result.Success {
		os.Exit(1)
	}
}
