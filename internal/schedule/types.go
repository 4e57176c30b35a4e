package schedule

// AppointmentType is the closed set of booking kinds the clinic accepts.
type AppointmentType string

const (
	TypeSingle       AppointmentType = "single"
	TypeDouble       AppointmentType = "double"
	TypeConsultation AppointmentType = "consultation"
	TypeFriends      AppointmentType = "friends"
)

// TypeInfo carries the display name and the people cap for one type.
type TypeInfo struct {
	Name      string
	MaxPeople int
}

var appointmentTypes = map[AppointmentType]TypeInfo{
	TypeSingle:       {Name: "單人預約", MaxPeople: 1},
	TypeDouble:       {Name: "雙人預約", MaxPeople: 2},
	TypeConsultation: {Name: "諮詢預約", MaxPeople: 1},
	TypeFriends:      {Name: "朋友相約", MaxPeople: 2},
}

// LookupType returns the type info, with ok=false for unknown types.
func LookupType(t AppointmentType) (TypeInfo, bool) {
	info, ok := appointmentTypes[t]
	return info, ok
}
