package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var testConstraints = JourneyConstraints{
	LayoverMin:  30 * time.Minute,
	LayoverMax:  4 * time.Hour,
	MaxDuration: 24 * time.Hour,
	MaxLegs:     3,
}

// flightAt builds an ACTIVE flight departing at base+dep for the given
// route and air time.
func flightAt(src, dst string, base time.Time, dep, air time.Duration) *Flight {
	return &Flight{
		ID:            uuid.New(),
		Source:        src,
		Destination:   dst,
		DepartureTime: base.Add(dep),
		ArrivalTime:   base.Add(dep + air),
		Price:         100,
		Status:        FlightActive,
	}
}

func TestValidatePath_Direct(t *testing.T) {
	base := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	f := flightAt("DEL", "BOM", base, 0, 2*time.Hour)
	if !ValidatePath([]*Flight{f}, testConstraints) {
		t.Error("single direct flight should be a valid journey")
	}
}

func TestValidatePath_ConnectionWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	first := flightAt("DEL", "BOM", base, 0, 2*time.Hour) // arrives 08:00

	cases := []struct {
		name    string
		layover time.Duration
		want    bool
	}{
		{"below minimum", 20 * time.Minute, false},
		{"at minimum", 30 * time.Minute, true},
		{"inside window", 2 * time.Hour, true},
		{"at maximum", 4 * time.Hour, true},
		{"above maximum", 5 * time.Hour, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			second := flightAt("BOM", "GOI", base, 2*time.Hour+tc.layover, time.Hour)
			got := ValidatePath([]*Flight{first, second}, testConstraints)
			if got != tc.want {
				t.Errorf("layover %s: ValidatePath = %v, want %v", tc.layover, got, tc.want)
			}
		})
	}
}

func TestValidatePath_DisconnectedAirports(t *testing.T) {
	base := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	first := flightAt("DEL", "BOM", base, 0, 2*time.Hour)
	second := flightAt("MAA", "GOI", base, 3*time.Hour, time.Hour)
	if ValidatePath([]*Flight{first, second}, testConstraints) {
		t.Error("legs that do not share the connection airport must be rejected")
	}
}

func TestValidatePath_RoundTripRejected(t *testing.T) {
	base := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	out := flightAt("DEL", "BOM", base, 0, 2*time.Hour)
	back := flightAt("BOM", "DEL", base, 3*time.Hour, 2*time.Hour)
	if ValidatePath([]*Flight{out, back}, testConstraints) {
		t.Error("journey ending at its own source must be rejected")
	}
}

func TestValidatePath_RepeatedFlightRejected(t *testing.T) {
	base := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	f := flightAt("DEL", "BOM", base, 0, 2*time.Hour)
	if ValidatePath([]*Flight{f, f}, testConstraints) {
		t.Error("a flight must not appear twice in one journey")
	}
}

func TestValidatePath_TooManyLegs(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := flightAt("DEL", "BOM", base, 0, time.Hour)
	b := flightAt("BOM", "GOI", base, 2*time.Hour, time.Hour)
	c := flightAt("GOI", "MAA", base, 4*time.Hour, time.Hour)
	d := flightAt("MAA", "CCU", base, 6*time.Hour, time.Hour)
	if ValidatePath([]*Flight{a, b, c, d}, testConstraints) {
		t.Error("four legs must be rejected when the cap is three")
	}
}

func TestValidatePath_DurationCap(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	// Two legs with a legal layover but 25h door to door.
	first := flightAt("DEL", "BOM", base, 0, 21*time.Hour)
	second := flightAt("BOM", "GOI", base, 23*time.Hour, 2*time.Hour)
	if ValidatePath([]*Flight{first, second}, testConstraints) {
		t.Error("journey longer than the duration cap must be rejected")
	}
}

func TestLegSequence_OrderSensitive(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	j1 := &Journey{Legs: []Leg{{FlightID: a, Position: 1}, {FlightID: b, Position: 2}}}
	j2 := &Journey{Legs: []Leg{{FlightID: b, Position: 1}, {FlightID: a, Position: 2}}}
	if j1.LegSequence() == j2.LegSequence() {
		t.Error("reversed leg order must produce a different sequence")
	}
	if j1.LegSequence() != a.String()+">"+b.String() {
		t.Errorf("LegSequence = %q, want ids joined in leg order", j1.LegSequence())
	}
}

func TestNewJourneyFromPath(t *testing.T) {
	base := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	first := flightAt("DEL", "BOM", base, 0, 2*time.Hour)
	second := flightAt("BOM", "GOI", base, 3*time.Hour, time.Hour)

	j := NewJourneyFromPath([]*Flight{first, second})

	if j.Source != "DEL" || j.Destination != "GOI" {
		t.Errorf("route = %s-%s, want DEL-GOI", j.Source, j.Destination)
	}
	if !j.DepartureTime.Equal(first.DepartureTime) || !j.ArrivalTime.Equal(second.ArrivalTime) {
		t.Error("journey times must span first departure to last arrival")
	}
	if j.TotalPrice != first.Price+second.Price {
		t.Errorf("TotalPrice = %v, want %v", j.TotalPrice, first.Price+second.Price)
	}
	if j.LayoverCount() != 1 {
		t.Errorf("LayoverCount = %d, want 1", j.LayoverCount())
	}
	if j.Status != JourneyActive {
		t.Errorf("Status = %s, want ACTIVE", j.Status)
	}
	for i, leg := range j.Legs {
		if leg.Position != i+1 {
			t.Errorf("leg %d position = %d, want %d", i, leg.Position, i+1)
		}
	}
}
