package listing

import "context"

const (
	EventListingCreated = "listing_created"
	EventListingUpdated = "listing_updated"
	EventListingDeleted = "listing_deleted"
)

// ChangeNotifier is told about every committed aggregate write.
type ChangeNotifier interface {
	ListingChanged(ctx context.Context, event string, propertyID, ownerID int64)
}
