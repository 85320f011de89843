package intents

import chat_widget "github.com/wirnat/chat-widget"

type BrandInfo struct {
}

func (b BrandInfo) Code() string {
	return "brand-info"
}

func (b BrandInfo) Description() []string {
	return []string{
		"where is the shop",
		"shop address",
		"where are you located",
		"how do i get to the barbershop",
	}
}

func (b BrandInfo) Responses() []string {
	return []string{
		"Ms Man is at Jl. Kenyeri 2, Gang D, No.4.",
		"You can find us at Jl. Kenyeri 2, Gang D, No.4. See you soon!",
	}
}

func (b BrandInfo) Images() []string {
	return []string{"storefront.jpg"}
}

func (b BrandInfo) QuickReplies() chat_widget.QuickReplies {
	return chat_widget.QuickReplies{
		{Title: "Opening hours", Payload: "opening hours"},
		{Title: "Services", Payload: "list of services"},
	}
}
