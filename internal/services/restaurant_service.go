package services

import (
	"context"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/backend"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
)

// FavoriteLookup answers favorite membership; the history store
// implements it.
type FavoriteLookup interface {
	IsFavorite(productID string) bool
}

// MealView is a menu item decorated with local favorite state.
type MealView struct {
	backend.Meal
	IsFavorite bool `json:"is_favorite"`
}

// RestaurantService passes restaurant and meal lookups through to the
// backend and decorates results with favorite membership from the
// local store. It holds no state of its own; the backend client's TTL
// cache covers repeat lookups.
type RestaurantService struct {
	client    *backend.Client
	favorites FavoriteLookup
	logger    *logging.Logger
}

// NewRestaurantService creates the service. favorites may be nil, in
// which case nothing is decorated.
func NewRestaurantService(client *backend.Client, favorites FavoriteLookup) *RestaurantService {
	return &RestaurantService{
		client:    client,
		favorites: favorites,
		logger:    logging.Get().WithComponent("services"),
	}
}

// Search lists venues matching the query.
func (s *RestaurantService) Search(ctx context.Context, query backend.RestaurantQuery) ([]backend.Restaurant, error) {
	return s.client.Restaurants(ctx, query)
}

// Meals lists a venue's menu, flagging items the user has favorited.
func (s *RestaurantService) Meals(ctx context.Context, restaurantID string) ([]MealView, error) {
	meals, err := s.client.MealsByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	views := make([]MealView, len(meals))
	for i, meal := range meals {
		views[i] = MealView{Meal: meal}
		if s.favorites != nil {
			views[i].IsFavorite = s.favorites.IsFavorite(meal.ID)
		}
	}
	return views, nil
}
