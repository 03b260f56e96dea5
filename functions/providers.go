package functions

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Clock supplies the current time for time and date lookups.
type Clock interface {
	Now() time.Time
}

// RandomSource backs the mocked figures. Intn returns a value in [0, n).
type RandomSource interface {
	Intn(n int) int
}

// SystemInfoProvider reports the device figures for get_system_info.
type SystemInfoProvider interface {
	Battery() string
	Memory() string
	CPU() string
	Network() string
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

type mathRandom struct{}

func (mathRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return rand.IntN(n)
}

// DefaultRandom returns a RandomSource backed by math/rand/v2.
func DefaultRandom() RandomSource { return mathRandom{} }

// MockSystemInfo synthesizes plausible device figures from a RandomSource.
type MockSystemInfo struct {
	Rand RandomSource
}

func (m MockSystemInfo) Battery() string {
	return fmt.Sprintf("%d%%", m.Rand.Intn(100))
}

func (m MockSystemInfo) Memory() string {
	return fmt.Sprintf("%d GB available", m.Rand.Intn(32))
}

func (m MockSystemInfo) CPU() string {
	return fmt.Sprintf("%d%% usage", m.Rand.Intn(100))
}

func (m MockSystemInfo) Network() string {
	return "Connected to WiFi"
}
