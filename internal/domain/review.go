package domain

import "time"

// ReviewMaxRating is the highest star rating a buyer can give.
const ReviewMaxRating = 5

// Review is a buyer's rating of a product. Inactive reviews stay hidden from the storefront until
// the product's vendor publishes them. VendorID is the owner of the reviewed product and is
// resolved on read.
type Review struct {
	ID        string
	ProductID string
	VendorID  string
	UserID    string
	Rating    int
	Comment   string
	Reply     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
