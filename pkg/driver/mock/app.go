package mock

// Queries used by ProductApp. Each control answers to its stable test id
// as well as the selectors of the original Angular Material markup.
const (
	AddButton        = ".mat-flat-button.mat-primary"
	AddButtonTestID  = `[data-testid="add-button"]`
	NameField        = "#field-name"
	DescriptionField = "#field-description"
	PriceField       = "#field-price"
	SubmitButton     = `[type="submit"]`
	Heading          = "h2"

	ProductAddPath    = "/product-add"
	ProductDetailPath = "/products/1"
)

// ProductApp returns a small product catalogue: a list page with an add
// button, an add form, and a detail page whose heading shows the created
// product's name.
func ProductApp() App {
	return App{
		"/": {
			Title: "Products",
			Nodes: []*Node{
				{Queries: []string{Heading}, Tag: "h2", Text: "Products"},
				{
					Queries: []string{AddButton, AddButtonTestID, "text=Add product"},
					Tag:     "button",
					Text:    "Add product",
					OnClick: func(p *Page) { p.Go(ProductAddPath) },
				},
			},
		},
		ProductAddPath: {
			Title: "Add product",
			Nodes: []*Node{
				{Queries: []string{Heading}, Tag: "h2", Text: "New product"},
				{Queries: []string{NameField, "#mat-input-0", `[data-testid="name"]`}, Tag: "input", Input: true},
				{Queries: []string{DescriptionField, "#mat-input-1", `[data-testid="description"]`}, Tag: "input", Input: true},
				{Queries: []string{PriceField, "#mat-input-2", `[data-testid="price"]`}, Tag: "input", Input: true},
				{
					Queries: []string{SubmitButton, `[data-testid="submit"]`},
					Tag:     "button",
					Text:    "Save",
					OnClick: func(p *Page) {
						p.Set("name", p.Value(NameField))
						p.Set("description", p.Value(DescriptionField))
						p.Set("price", p.Value(PriceField))
						p.Go(ProductDetailPath)
					},
				},
			},
		},
		ProductDetailPath: {
			Title: "Product",
			Nodes: []*Node{
				{
					Queries:  []string{Heading, `[data-testid="title"]`},
					Tag:      "h2",
					TextFunc: func(p *Page) string { return "Product: " + p.Get("name") },
				},
				{
					Queries:  []string{".description"},
					Tag:      "p",
					TextFunc: func(p *Page) string { return p.Get("description") },
				},
				{
					Queries:  []string{".price"},
					Tag:      "span",
					TextFunc: func(p *Page) string { return p.Get("price") },
				},
			},
		},
	}
}
