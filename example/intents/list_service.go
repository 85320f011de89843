package intents

import chat_widget "github.com/wirnat/chat-widget"

type ListService struct{}

func (l ListService) Code() string {
	return "list-service"
}

func (l ListService) Description() []string {
	return []string{
		"list of services",
		"available services",
		"how much is a haircut",
		"haircut price",
	}
}

func (l ListService) Responses() []string {
	return []string{
		"Haircut Adult: Rp50.000\nHaircut Kids (under 10): Rp40.000\nHair Wash: Rp10.000",
	}
}

func (l ListService) QuickReplies() chat_widget.QuickReplies {
	return chat_widget.QuickReplies{
		{Title: "Book a haircut", Payload: "i want to book"},
		{Title: "Who is working?", Payload: "which capsters are available"},
	}
}
