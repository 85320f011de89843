package intents

import "github.com/wirnat/chat-widget/botserver"

// All is the demo catalog served by the example backend.
func All() []botserver.IntentDefinition {
	return []botserver.IntentDefinition{
		BrandInfo{},
		ProductCatalog{},
		ListService{},
		AvailabilityCapster{},
		BookingCapster{},
		BookingConfirm{},
		OpeningHours{},
	}
}
