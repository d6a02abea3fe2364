package models

// ICAPMode is one of the four ICAP engagement modes.
type ICAPMode string

const (
	ICAPPassive      ICAPMode = "Passive"
	ICAPActive       ICAPMode = "Active"
	ICAPConstructive ICAPMode = "Constructive"
	ICAPInteractive  ICAPMode = "Interactive"
)

// ICAPModes lists all valid modes.
var ICAPModes = []ICAPMode{ICAPPassive, ICAPActive, ICAPConstructive, ICAPInteractive}

// Valid reports whether m is one of the four enumerated modes.
func (m ICAPMode) Valid() bool {
	for _, known := range ICAPModes {
		if m == known {
			return true
		}
	}
	return false
}

// ICAPResult classifies one event's engagement mode.
type ICAPResult struct {
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Text       string   `json:"text"`
	Mode       ICAPMode `json:"ICAP_mode"`
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
}
