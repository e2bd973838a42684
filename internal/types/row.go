package types

// Gender canonical tokens. Values outside this set pass through
// unmodified from the source.
const (
	GenderMan   = "MAN"
	GenderWoman = "WOMAN"
)

// Availability canonical tokens.
const (
	AvailabilityInStock    = "in_stock"
	AvailabilityOutOfStock = "out_of_stock"
	AvailabilityUnknown    = "unknown"
)

// Row is the normalized record shape persisted to storage. String
// fields hold "" for null; Price is nil when the source had no usable
// price.
type Row struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Brand        string         `json:"brand"`
	Price        *float64       `json:"price,omitempty"`
	Currency     string         `json:"currency"`
	ImageURL     string         `json:"image_url,omitempty"`
	ProductURL   string         `json:"product_url,omitempty"`
	AffiliateURL string         `json:"affiliate_url,omitempty"`
	Gender       string         `json:"gender,omitempty"`
	Category     string         `json:"category,omitempty"`
	Size         string         `json:"size,omitempty"`
	Availability string         `json:"availability,omitempty"`
	SecondHand   bool           `json:"second_hand"`
	Country      string         `json:"country,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Embedding    []float32      `json:"embedding,omitempty"`
}
