package intents

type OpeningHours struct {
}

func (o OpeningHours) Code() string {
	return "opening-hours"
}

func (o OpeningHours) Description() []string {
	return []string{
		"opening hours",
		"when are you open",
		"what time do you close",
		"are you open on sunday",
	}
}

func (o OpeningHours) Responses() []string {
	return []string{
		"We are open every day from 09:00 to 21:00.",
	}
}
