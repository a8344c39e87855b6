package command

// Modulation is an AM or FM modulation node.
type Modulation struct {
	Toggle
	RateSelect

	// Set renders the modulation depth (AM, %) or deviation (FM, kHz).
	Set *Numeric
}

// ControlOutput is the control output node.
type ControlOutput struct {
	Toggle
	Step

	Set *Numeric
}

// Output is the RF output level node. Each unit has its own bounds.
type Output struct {
	Toggle

	DBm  *Numeric
	DBuV *Numeric
	MV   *Numeric
	UV   *Numeric

	impedance Enum
}

// Imp50R selects the 50 ohm output impedance ("AP 50").
func (o Output) Imp50R() string { return o.impedance.text("imp_50R") }

// Imp75R selects the 75 ohm output impedance ("AP 75").
func (o Output) Imp75R() string { return o.impedance.text("imp_75R") }

// Frequency is the carrier frequency node.
type Frequency struct {
	MHz *Numeric
	KHz *Numeric
}

// SwitchedLevel is a node with an on/off switch and a single level,
// e.g. the stereo pilot signal.
type SwitchedLevel struct {
	Toggle

	Set *Numeric
}

// ChannelMode selects the main/sub channel modulation mode ("MS nn").
type ChannelMode struct {
	enum Enum
}

func (c ChannelMode) Off() string          { return c.enum.text("off") }
func (c ChannelMode) MonoInt() string      { return c.enum.text("mono_int") }
func (c ChannelMode) LeqRInt() string      { return c.enum.text("l_eq_r_int") }
func (c ChannelMode) LInt() string         { return c.enum.text("l_int") }
func (c ChannelMode) RInt() string         { return c.enum.text("r_int") }
func (c ChannelMode) LeqMinusRInt() string { return c.enum.text("l_eq_minus_r_int") }
func (c ChannelMode) MonoExt() string      { return c.enum.text("mono_ext") }
func (c ChannelMode) LeqRExt() string      { return c.enum.text("l_eq_r_ext") }
func (c ChannelMode) LExt() string         { return c.enum.text("l_ext") }
func (c ChannelMode) RExt() string         { return c.enum.text("r_ext") }
func (c ChannelMode) LeqMinusRExt() string { return c.enum.text("l_eq_minus_r_ext") }
func (c ChannelMode) LRExt() string        { return c.enum.text("l_r_ext") }

// PreEmphasis selects the FM stereo pre-emphasis time constant ("PR n").
type PreEmphasis struct {
	enum Enum
}

func (p PreEmphasis) Off() string     { return p.enum.text("off") }
func (p PreEmphasis) Set25us() string { return p.enum.text("25us") }
func (p PreEmphasis) Set50us() string { return p.enum.text("50us") }
func (p PreEmphasis) Set75us() string { return p.enum.text("75us") }
