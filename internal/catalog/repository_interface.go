package catalog

import "context"

type Repository interface {
	GetPlanByID(ctx context.Context, id int) (*Plan, error)
	GetActivePlanByID(ctx context.Context, id int) (*Plan, error)
	ListActivePlans(ctx context.Context, f PlanFilter) ([]Plan, error)
	GetOfferByID(ctx context.Context, id int) (*Offer, error)
	GetActiveOfferByID(ctx context.Context, id int) (*Offer, error)
	ListActiveOffers(ctx context.Context) ([]Offer, error)
}
