package schedule

// Slot is one bookable time point on a given date. Slots are derived on
// demand and never stored.
type Slot struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Capacity int    `json:"capacity"`
}

// Generator derives the bookable slots for a date from the weekly table,
// a fixed slot duration, and a per-slot people capacity.
type Generator struct {
	table        *Table
	slotDuration int
	capacity     int
}

func NewGenerator(table *Table, slotDurationMinutes, capacity int) *Generator {
	if slotDurationMinutes <= 0 {
		slotDurationMinutes = 15
	}
	if capacity <= 0 {
		capacity = 1
	}
	return &Generator{
		table:        table,
		slotDuration: slotDurationMinutes,
		capacity:     capacity,
	}
}

// Capacity returns the per-slot people capacity the generator was built with.
func (g *Generator) Capacity() int {
	return g.capacity
}

// Generate returns the ordered slots for a date, or an empty slice when the
// clinic is closed that weekday. Slot times are emitted every slot duration
// while still strictly before closing time.
func (g *Generator) Generate(date string) ([]Slot, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	entry, open := g.table.Entry(day.Weekday())
	if !open {
		return []Slot{}, nil
	}

	var slots []Slot
	for t := entry.OpenMinutes; t < entry.CloseMinutes; t += g.slotDuration {
		slots = append(slots, Slot{
			Date:     date,
			Time:     FormatClock(t),
			Capacity: g.capacity,
		})
	}

	return slots, nil
}
