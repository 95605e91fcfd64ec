// Package power implements the pure power-aware scheduling decision table
// of spec component E. It has no I/O: callers supply telemetry and get back
// a Decision.
package power

import (
	"time"

	"coordinator-core/core"
)

// Decision is the outcome of evaluating a worker's eligibility for new work.
type Decision struct {
	AllowCoordinatorTasks bool
	AllowPeerDirectWork   bool
	AllowSmallTasksOnly   bool
	DeferMs               int64
	Reason                string
}

func allowAll(reason string) Decision {
	return Decision{AllowCoordinatorTasks: true, AllowPeerDirectWork: true, Reason: reason}
}

func blockAll(reason string) Decision {
	return Decision{Reason: reason}
}

// Evaluate applies the §4.E decision table, first matching rule wins.
func Evaluate(os core.OS, telemetry core.PowerTelemetry, lastTaskAssignedAtMs int64, now time.Time) Decision {
	deviceType := telemetry.DeviceClass
	cpuPct := telemetry.CPUPct
	thermal := telemetry.Thermal
	lowPowerMode := telemetry.LowPowerMode
	onExternalPower := telemetry.OnExternalPower
	battery := telemetry.BatteryPct

	switch {
	case deviceType == core.DeviceServer:
		return allowAll("server_unlimited")

	case cpuPct > 85:
		d := allowAll("high_cpu_defer")
		d.DeferMs = 5000
		return d

	case thermal == core.ThermalSerious || thermal == core.ThermalCritical:
		return blockAll("thermal_throttle")

	case os == core.OSIOS && lowPowerMode:
		return blockAll("ios_low_power_mode")

	case os == core.OSIOS && !onExternalPower && battery <= 20:
		return blockAll("ios_battery_critical")

	case os == core.OSIOS && !onExternalPower && now.UnixMilli()-lastTaskAssignedAtMs < 45_000:
		return Decision{AllowCoordinatorTasks: false, AllowPeerDirectWork: false, Reason: "ios_on_battery_throttled"}

	case os == core.OSIOS && !onExternalPower:
		return Decision{AllowCoordinatorTasks: true, AllowPeerDirectWork: false, Reason: "ios_on_battery_lite_mode"}

	case os == core.OSIOS && onExternalPower:
		return allowAll("ios_external_power")

	case deviceType == core.DeviceLaptop && !onExternalPower && battery < 15:
		return blockAll("laptop_battery_critical")

	case deviceType == core.DeviceLaptop && !onExternalPower && battery >= 15 && battery <= 40:
		return Decision{AllowCoordinatorTasks: true, AllowPeerDirectWork: true, AllowSmallTasksOnly: true, Reason: "laptop_battery_low"}

	case deviceType == core.DeviceLaptop && !onExternalPower && battery > 40:
		return Decision{AllowCoordinatorTasks: true, AllowPeerDirectWork: false, Reason: "laptop_battery_high"}

	default:
		return allowAll("desktop_ac_power")
	}
}
