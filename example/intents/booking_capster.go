package intents

import chat_widget "github.com/wirnat/chat-widget"

type BookingCapster struct{}

func (b BookingCapster) Code() string {
	return "booking-capster"
}

func (b BookingCapster) Description() []string {
	return []string{
		"i want to book",
		"book a haircut",
		"make a reservation",
		"can i book with john",
	}
}

func (b BookingCapster) Responses() []string {
	return []string{
		"Sure! Which day would you like to come in?",
		"Happy to book you in. When works for you?",
	}
}

func (b BookingCapster) QuickReplies() chat_widget.QuickReplies {
	return chat_widget.QuickReplies{
		{Title: "Today", Payload: "book today"},
		{Title: "Tomorrow", Payload: "book tomorrow"},
	}
}

// BookingConfirm answers the day picked from BookingCapster's quick replies.
type BookingConfirm struct{}

func (b BookingConfirm) Code() string {
	return "booking-confirm"
}

func (b BookingConfirm) Description() []string {
	return []string{
		"book today",
		"book tomorrow",
		"book for the weekend",
	}
}

func (b BookingConfirm) Responses() []string {
	return []string{
		"Done! Your booking code is B0001. Show it at the counter when you arrive.",
	}
}
