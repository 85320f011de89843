package intents

type AvailabilityCapster struct {
}

func (a AvailabilityCapster) Code() string {
	return "capster-availability"
}

func (a AvailabilityCapster) Description() []string {
	return []string{
		"which capsters are available",
		"is rudi working today",
		"capster schedule",
		"who is cutting today",
	}
}

func (a AvailabilityCapster) Responses() []string {
	return []string{
		"Rudi takes the afternoon shift (13:00 to 15:00), Rama from 12:00 to 14:00 and Ade the morning (09:00 to 11:00).",
	}
}

func (a AvailabilityCapster) Images() []string {
	return []string{"rudi.jpg", "rama.jpg", "ade.jpg"}
}
