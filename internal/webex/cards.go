package webex

// CardContentType is the attachment content type for adaptive cards.
const CardContentType = "application/vnd.microsoft.card.adaptive"

// Card is an adaptive card with a flat body of text blocks and text inputs.
type Card struct {
	Schema  string        `json:"$schema"`
	Type    string        `json:"type"`
	Version string        `json:"version"`
	Body    []CardElement `json:"body"`
	Actions []CardAction  `json:"actions,omitempty"`
}

// CardElement is either a TextBlock or an Input.Text.
type CardElement struct {
	Type        string `json:"type"`
	ID          string `json:"id,omitempty"`
	Text        string `json:"text,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Wrap        bool   `json:"wrap,omitempty"`
}

// CardAction is a submit button.
type CardAction struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

// NewCard starts a card with a heading.
func NewCard(heading string) *Card {
	return &Card{
		Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
		Type:    "AdaptiveCard",
		Version: "1.1",
		Body:    []CardElement{{Type: "TextBlock", Text: heading, Wrap: true}},
	}
}

// TextInput appends a named text input.
func (c *Card) TextInput(id, placeholder string) *Card {
	c.Body = append(c.Body, CardElement{Type: "Input.Text", ID: id, Placeholder: placeholder})
	return c
}

// Submit appends a submit action.
func (c *Card) Submit(title string) *Card {
	c.Actions = append(c.Actions, CardAction{Type: "Action.Submit", Title: title})
	return c
}

// InputIDs lists the ids of the card's inputs in order.
func (c *Card) InputIDs() []string {
	var ids []string
	for _, el := range c.Body {
		if el.ID != "" {
			ids = append(ids, el.ID)
		}
	}
	return ids
}
