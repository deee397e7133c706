package part

import "strings"

// Family is the coarse functional classification of a part, independent of
// its SPICE device-type code. It is a closed set: rule dispatch is done on
// this enum, never on free-text editor metadata.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyResistor
	FamilyLED
	FamilyCapacitor
	FamilyDiode
	FamilyBattery
	FamilyMotor
	FamilyLineSensor
	FamilyDistanceSensor
	FamilyPotentiometer
	FamilyMultimeter
	FamilyTransistor
)

var familyNames = map[Family]string{
	FamilyUnknown:        "unknown",
	FamilyResistor:       "resistor",
	FamilyLED:            "led",
	FamilyCapacitor:      "capacitor",
	FamilyDiode:          "diode",
	FamilyBattery:        "battery",
	FamilyMotor:          "dc motor",
	FamilyLineSensor:     "line sensor",
	FamilyDistanceSensor: "distance sensor",
	FamilyPotentiometer:  "potentiometer",
	FamilyMultimeter:     "multimeter",
	FamilyTransistor:     "transistor",
}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return "unknown"
}

// FamilyFromString maps a free-text family label from the part editor to the
// closed Family enum. Matching is substring based and case-insensitive; this
// is the legacy bridge for editors whose family metadata is free text.
// The match order matters: "led" must not swallow "line sensor", and LED
// checks must run before the generic diode check.
func FamilyFromString(s string) Family {
	l := strings.ToLower(s)
	switch {
	case strings.Contains(l, "line sensor"):
		return FamilyLineSensor
	case strings.Contains(l, "distance sensor") || strings.Contains(l, "ir sensor"):
		return FamilyDistanceSensor
	case strings.Contains(l, "capacitor"):
		return FamilyCapacitor
	case strings.Contains(l, "led"):
		return FamilyLED
	case strings.Contains(l, "diode"):
		return FamilyDiode
	case strings.Contains(l, "resistor"):
		return FamilyResistor
	case strings.Contains(l, "multimeter"):
		return FamilyMultimeter
	case strings.Contains(l, "dc motor"):
		return FamilyMotor
	case strings.Contains(l, "battery") || strings.Contains(l, "voltage source"):
		return FamilyBattery
	case strings.Contains(l, "potentiometer") || strings.Contains(l, "trimpot"):
		return FamilyPotentiometer
	case strings.Contains(l, "transistor"):
		return FamilyTransistor
	default:
		return FamilyUnknown
	}
}
