package command

// Level declares one numeric setter of a node.
type Level struct {
	// Name is the operation name in registry paths. An empty name makes
	// the node itself numeric (e.g. "total_fm_deviation").
	Name string

	// Min and Max are the inclusive bounds from the instruction manual.
	Min float64
	Max float64

	// Precision is the number of decimals the manual prints the bounds
	// with. A clamped value renders with at least this many.
	Precision int

	// Suffix is the unit appended after the value ("MZ", "DB"...).
	Suffix string
}

// NodeSpec declares one named node of a command registry.
type NodeSpec struct {
	// Name is the registry name (e.g. "am", "freq").
	Name string

	// Prefix is the subsystem token sent to the device (e.g. "AM", "FR").
	Prefix string

	// Capabilities.
	Toggle  bool // on/off
	Step    bool // up/down
	Rate    bool // T4/T1/XD modulation source
	Literal bool // bare prefix, no argument

	Levels  []Level
	Choices []Choice
}

// VP8122A returns the command table of the Panasonic VP-8122A AM/FM stereo
// signal generator. Each call returns a fresh copy.
func VP8122A() []NodeSpec {
	return []NodeSpec{
		{Name: "go_to_local", Prefix: "GTL", Literal: true},
		{
			Name: "control_out", Prefix: "CO", Toggle: true, Step: true,
			Levels: []Level{{Name: "set", Min: 0, Max: 10}},
		},
		{
			Name: "fm", Prefix: "FM", Toggle: true, Rate: true,
			Levels: []Level{{Name: "set", Min: 0, Max: 300}},
		},
		{
			Name: "am", Prefix: "AM", Toggle: true, Rate: true,
			Levels: []Level{{Name: "set", Min: 0, Max: 125}},
		},
		{
			Name: "pilot_signal", Prefix: "PL", Toggle: true,
			Levels: []Level{{Name: "set", Min: 0, Max: 19.9}},
		},
		{
			Name: "total_fm_deviation", Prefix: "FT",
			Levels: []Level{{Min: 0, Max: 402}},
		},
		{
			Name: "composite_signal_out_level", Prefix: "LV",
			Levels: []Level{{Min: 0, Max: 9990}},
		},
		{
			Name: "output", Prefix: "AP", Toggle: true,
			Levels: []Level{
				{Name: "dBm", Min: -133.0, Max: 19.0, Precision: 1, Suffix: "DM"},
				{Name: "dBuV", Min: -26.0, Max: 126.0, Precision: 1, Suffix: "DB"},
				{Name: "mV", Min: 0.00005, Max: 2000, Suffix: "MV"},
				{Name: "uV", Min: 0.05, Max: 2000000, Suffix: "UV"},
			},
			Choices: []Choice{
				{Name: "imp_50R", Token: "50"},
				{Name: "imp_75R", Token: "75"},
			},
		},
		{
			Name: "freq", Prefix: "FR",
			Levels: []Level{
				{Name: "MHz", Min: 0.01, Max: 280.0, Precision: 1, Suffix: "MZ"},
				{Name: "kHz", Min: 10.0, Max: 280000.0, Precision: 1, Suffix: "KZ"},
			},
		},
		{
			Name: "main_and_sub_ch", Prefix: "MS",
			Choices: []Choice{
				{Name: "off", Token: "00"},
				{Name: "mono_int", Token: "01"},
				{Name: "l_eq_r_int", Token: "02"},
				{Name: "l_int", Token: "03"},
				{Name: "r_int", Token: "04"},
				{Name: "l_eq_minus_r_int", Token: "05"},
				{Name: "mono_ext", Token: "11"},
				{Name: "l_eq_r_ext", Token: "12"},
				{Name: "l_ext", Token: "13"},
				{Name: "r_ext", Token: "14"},
				{Name: "l_eq_minus_r_ext", Token: "15"},
				{Name: "l_r_ext", Token: "17"},
			},
		},
		{Name: "neg_peak_clipper", Prefix: "NP", Toggle: true},
		{
			Name: "fm_stereo_pre_emphasis", Prefix: "PR",
			Choices: []Choice{
				{Name: "off", Token: "0"},
				{Name: "25us", Token: "1"},
				{Name: "50us", Token: "2"},
				{Name: "75us", Token: "3"},
			},
		},
	}
}
