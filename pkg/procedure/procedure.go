// Package procedure holds the canned command sequences used on the bench.
//
// A procedure renders its commands through a command.Registry and hands
// them to an Applier (usually a *session.Session) in one ordered batch.
// The order matters: the control output is switched off while the carrier
// is retuned so the device under test never sees the sweep.
package procedure

import (
	"context"
	"fmt"

	"github.com/rfbench/vp8122a-go/pkg/command"
)

// Applier sends rendered commands in order.
// Implemented by session.Session.
type Applier interface {
	Apply(ctx context.Context, cmds []command.Rendered) error
}

// Impedance selects the output impedance.
type Impedance uint8

const (
	Impedance50 Impedance = iota
	Impedance75
)

// String returns the impedance in ohms.
func (i Impedance) String() string {
	switch i {
	case Impedance50:
		return "50"
	case Impedance75:
		return "75"
	default:
		return "UNKNOWN"
	}
}

// Rate selects the AM modulation source.
type Rate uint8

const (
	Rate1kHz Rate = iota
	Rate400Hz
	RateExternal
)

// String returns the rate name.
func (r Rate) String() string {
	switch r {
	case Rate1kHz:
		return "1kHz"
	case Rate400Hz:
		return "400Hz"
	case RateExternal:
		return "EXT"
	default:
		return "UNKNOWN"
	}
}

// Setup parameterizes the measurement init sequence.
type Setup struct {
	// AMDepth is the AM modulation depth in percent.
	AMDepth command.Value

	// LevelDBuV is the output level in dBµV.
	LevelDBuV command.Value

	// FrequencyMHz is the carrier frequency.
	FrequencyMHz command.Value

	Rate      Rate
	Impedance Impedance
}

// DefaultSetup is the AM broadcast measurement: 30 % at 1 kHz, 20.0 dBµV,
// 0.531 MHz into 50 ohm.
func DefaultSetup() Setup {
	return Setup{
		AMDepth:      command.Int(30),
		LevelDBuV:    command.Fixed(20, 1),
		FrequencyMHz: command.Fixed(0.531, 3),
		Rate:         Rate1kHz,
		Impedance:    Impedance50,
	}
}

// InitMeasurementCommands renders the measurement init sequence.
func InitMeasurementCommands(reg *command.Registry, s Setup) []command.Rendered {
	var rate string
	switch s.Rate {
	case Rate400Hz:
		rate = reg.AM.Set400Hz()
	case RateExternal:
		rate = reg.AM.SetExternal()
	default:
		rate = reg.AM.Set1kHz()
	}
	imp := reg.Output.Imp50R()
	if s.Impedance == Impedance75 {
		imp = reg.Output.Imp75R()
	}

	return []command.Rendered{
		reg.AM.Set.Render(s.AMDepth),
		text(reg.AM.On()),
		reg.Output.DBuV.Render(s.LevelDBuV),
		text(reg.MainAndSubCh.MonoInt()),
		text(rate),
		reg.Freq.MHz.Render(s.FrequencyMHz),
		text(imp),
		text(reg.ControlOut.On()),
	}
}

// RetuneCommands renders a carrier change with the control output off.
func RetuneCommands(reg *command.Registry, mhz command.Value) []command.Rendered {
	return []command.Rendered{
		text(reg.ControlOut.Off()),
		reg.Freq.MHz.Render(mhz),
		text(reg.ControlOut.On()),
	}
}

// InitMeasurement brings the generator into the measurement state.
func InitMeasurement(ctx context.Context, a Applier, reg *command.Registry, s Setup) error {
	if err := a.Apply(ctx, InitMeasurementCommands(reg, s)); err != nil {
		return fmt.Errorf("init measurement: %w", err)
	}
	return nil
}

// Retune moves the carrier to mhz.
func Retune(ctx context.Context, a Applier, reg *command.Registry, mhz command.Value) error {
	if err := a.Apply(ctx, RetuneCommands(reg, mhz)); err != nil {
		return fmt.Errorf("retune to %s MHz: %w", mhz, err)
	}
	return nil
}

func text(s string) command.Rendered { return command.Rendered{Text: s} }
