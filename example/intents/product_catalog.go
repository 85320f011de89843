package intents

type ProductCatalog struct{}

func (p ProductCatalog) Description() []string {
	return []string{
		"which products do you sell",
		"product list",
		"show me the products",
		"buy products",
		"product catalog",
	}
}

func (p ProductCatalog) Responses() []string {
	return []string{
		"Our products:\n" +
			"Hairnerd Pomade, stiff and shiny hold: Rp70.000\n" +
			"Hairnerd Shampoo, anti dandruff and softening: Rp40.000\n" +
			"Selsun Shampoo, anti dandruff: Rp10.000",
	}
}

func (p ProductCatalog) Images() []string {
	return []string{"pomade.jpg", "shampoo.jpg"}
}

func (p ProductCatalog) Code() string {
	return "product-catalog"
}
